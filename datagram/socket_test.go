//go:build linux

package datagram_test

import (
	"context"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/datagram"
	"github.com/kestrelnet/proactor/faketest"
	"github.com/kestrelnet/proactor/proactor"
	"github.com/kestrelnet/proactor/socket"
	"github.com/kestrelnet/proactor/uring"
)

func runInBackground(t *testing.T, p *proactor.Proactor) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

// loopbackResolve mimics a kernel that always accepts the full payload of a
// sendmsg/recvmsg, by reading the iovec length straight off the msghdr the
// submission points at.
func loopbackResolve(s uring.Submission) uring.Completion {
	switch s.Opcode {
	case uring.OpSendmsg, uring.OpSendmsgZC, uring.OpRecvmsg:
		hdr := (*unix.Msghdr)(unsafe.Pointer(s.Addr))
		return uring.Completion{UserData: s.UserData, Result: int32(hdr.Iov.Len)}
	default:
		return uring.Completion{UserData: s.UserData, Result: 0}
	}
}

func newTestSocket(t *testing.T) (*datagram.Socket, *faketest.Device, *faketest.Scheduler) {
	t.Helper()
	d := faketest.NewDevice()
	d.Resolve = loopbackResolve
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	s, err := datagram.Open(p, nil, datagram.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, d, sched
}

func TestSocketSendCompletesCallback(t *testing.T) {
	s, _, _ := newTestSocket(t)

	var mu sync.Mutex
	var gotN int
	var gotErr error
	done := make(chan struct{})

	_, err := s.Send([]byte("hello"), time.Time{}, func(n int, err error) {
		mu.Lock()
		gotN, gotErr = n, err
		mu.Unlock()
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, gotErr)
	assert.Equal(t, len("hello"), gotN)
}

func TestSocketSendHeldThenReleasedUnderRateLimit(t *testing.T) {
	d := faketest.NewDevice()
	d.Resolve = loopbackResolve
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	s, err := datagram.Open(p, nil, datagram.Options{
		RateLimitBytesPerSec: 1,
		RateLimitBurstBytes:  4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var mu sync.Mutex
	var events []datagram.EventKind
	s.OnEvent(func(e datagram.Event) {
		mu.Lock()
		events = append(events, e.Kind)
		mu.Unlock()
	})

	first := make(chan struct{})
	_, err = s.Send([]byte("abcd"), time.Time{}, func(int, error) { close(first) })
	require.NoError(t, err)
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("first send never completed")
	}

	// This one exceeds the burst and must be held, not rejected.
	second := make(chan struct{})
	var secondN int
	_, err = s.Send([]byte("e"), time.Time{}, func(n int, err error) {
		secondN = n
		assert.NoError(t, err)
		close(second)
	})
	require.NoError(t, err, "Send must never synchronously reject on rate limit")

	select {
	case <-second:
		t.Fatal("held send completed before relief elapsed")
	case <-time.After(10 * time.Millisecond):
	}

	sched.Advance(2 * time.Second)

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("held send never completed after relief")
	}
	assert.Equal(t, 1, secondN)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, datagram.EventRateLimitApplied)
	assert.Contains(t, events, datagram.EventRateLimitRelaxed)
}

func TestSocketSendExpiresOnDeadline(t *testing.T) {
	d := faketest.NewDevice()
	// Never resolves any submission. The zero-burst rate limiter also keeps
	// the send held in the queue, so only the deadline can finish it.
	d.Resolve = func(s uring.Submission) uring.Completion {
		return uring.Completion{}
	}
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	s, err := datagram.Open(p, nil, datagram.Options{
		RateLimitBytesPerSec: 1,
		RateLimitBurstBytes:  0,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	done := make(chan error, 1)
	_, err = s.Send([]byte("x"), sched.Now().Add(100*time.Millisecond), func(n int, err error) {
		done <- err
	})
	require.NoError(t, err)

	sched.Advance(200 * time.Millisecond)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, api.IsWouldBlock(err), "expected WouldBlock on deadline expiry, got %v", err)
	case <-time.After(time.Second):
		t.Fatal("expired send never finished")
	}
}

func TestSocketReceiveExpiresOnDeadlineWithWouldBlock(t *testing.T) {
	d := faketest.NewDevice()
	d.Resolve = func(s uring.Submission) uring.Completion {
		return uring.Completion{} // idle socket: recvmsg never completes
	}
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	s, err := datagram.Open(p, nil, datagram.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	done := make(chan error, 1)
	_, err = s.Receive(make([]byte, 32), sched.Now().Add(100*time.Millisecond), func(n int, from []byte, err error) {
		done <- err
	})
	require.NoError(t, err)

	sched.Advance(200 * time.Millisecond)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, api.IsWouldBlock(err))
	case <-time.After(time.Second):
		t.Fatal("idle receive never timed out")
	}
}

func TestSocketCancelUnknownTokenErrors(t *testing.T) {
	s, _, _ := newTestSocket(t)
	assert.Error(t, s.Cancel(999999))
}

func TestSocketSendAfterCloseFails(t *testing.T) {
	s, _, _ := newTestSocket(t)
	require.NoError(t, s.Close())

	_, err := s.Send([]byte("x"), time.Time{}, func(int, error) {})
	assert.Error(t, err)
}

func TestSocketShutdownDirectionCancelsPendingReceivesWithEOF(t *testing.T) {
	d := faketest.NewDevice()
	d.Resolve = func(s uring.Submission) uring.Completion { return uring.Completion{} }
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	s, err := datagram.Open(p, nil, datagram.Options{})
	require.NoError(t, err)

	var mu sync.Mutex
	var events []datagram.EventKind
	s.OnEvent(func(e datagram.Event) {
		mu.Lock()
		events = append(events, e.Kind)
		mu.Unlock()
	})

	done := make(chan error, 1)
	_, err = s.Receive(make([]byte, 32), time.Time{}, func(n int, from []byte, err error) {
		done <- err
	})
	require.NoError(t, err)

	s.ShutdownDirection(socket.DirectionReceive, datagram.ShutdownNow)

	select {
	case err := <-done:
		require.Error(t, err)
		serr, ok := err.(*api.Error)
		require.True(t, ok, "expected a structured error, got %T", err)
		assert.Equal(t, api.ErrCodeEOF, serr.Code, "receive-shutdown should surface EOF-coded errors")
	case <-time.After(time.Second):
		t.Fatal("pending receive never cancelled by shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, datagram.EventLowWatermark)

	require.NoError(t, s.Close())
}

func TestSocketShutdownDirectionDefersWriteHalfCloseUntilSendQueueDrains(t *testing.T) {
	d := faketest.NewDevice()
	d.Resolve = loopbackResolve
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	// A first send spends the whole burst, so the rate limiter holds the
	// second one in the queue; ShutdownDirection then observes a non-empty
	// send queue and must enqueue its sentinel rather than half-closing
	// immediately. Refilling 6 bytes at 6 B/s takes one second.
	s, err := datagram.Open(p, nil, datagram.Options{
		RateLimitBytesPerSec: 6,
		RateLimitBurstBytes:  6,
	})
	require.NoError(t, err)

	_, err = s.Send([]byte("burst!"), time.Time{}, func(int, error) {})
	require.NoError(t, err)

	sendDone := make(chan struct{})
	_, err = s.Send([]byte("queued"), time.Time{}, func(n int, err error) {
		assert.NoError(t, err)
		close(sendDone)
	})
	require.NoError(t, err)

	s.ShutdownDirection(socket.DirectionSend, datagram.ShutdownAfterDrain)

	// The send direction is already ShuttingDown, so further sends must be
	// rejected even though the original queued send hasn't drained yet.
	_, err = s.Send([]byte("too late"), time.Time{}, func(int, error) {})
	assert.Error(t, err, "sends issued after ShutdownDirection starts must be rejected")

	select {
	case <-sendDone:
		t.Fatal("queued send must not complete before the rate limiter releases it")
	case <-time.After(10 * time.Millisecond):
	}

	sched.Advance(2 * time.Second)

	select {
	case <-sendDone:
	case <-time.After(time.Second):
		t.Fatal("queued send never drained once the rate limiter released it")
	}

	require.NoError(t, s.Close())
}

func TestSocketTakeHandleExtractsForeignFD(t *testing.T) {
	const rightsFD = 42
	rights := unix.UnixRights(rightsFD)

	d := faketest.NewDevice()
	d.Resolve = func(s uring.Submission) uring.Completion {
		if s.Opcode == uring.OpRecvmsg {
			hdr := (*unix.Msghdr)(unsafe.Pointer(s.Addr))
			if hdr.Controllen > 0 {
				control := unsafe.Slice(hdr.Control, hdr.Controllen)
				n := copy(control, rights)
				hdr.Controllen = uint64(n)
			}
			return uring.Completion{UserData: s.UserData, Result: int32(hdr.Iov.Len)}
		}
		return uring.Completion{UserData: s.UserData, Result: 0}
	}
	sched := faketest.NewScheduler(time.Now())
	p := proactor.New(d, sched)
	runInBackground(t, p)
	t.Cleanup(func() { p.Shutdown() })

	s, err := datagram.Open(p, nil, datagram.Options{Family: unix.AF_UNIX})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	done := make(chan struct{})
	_, err = s.Receive(make([]byte, 32), time.Time{}, func(n int, from []byte, err error) {
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive never completed")
	}

	fd, ok := s.TakeHandle()
	require.True(t, ok, "TakeHandle should surface the SCM_RIGHTS descriptor from the completed receive")
	assert.Equal(t, rightsFD, fd)

	_, ok = s.TakeHandle()
	assert.False(t, ok, "TakeHandle must clear the stashed handle once taken")
}
