//go:build linux

package device

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/uring"
)

// io_uring mmap offsets (IORING_OFF_*), fixed by the kernel ABI.
const (
	offSQRing uint64 = 0
	offCQRing uint64 = 0x8000000
	offSQEs   uint64 = 0x10000000
)

// RingDevice owns one io_uring file descriptor and its mmap'd rings (C5).
// It is single-issuer: Submit/Flush/Wait must all be called from the
// goroutine running the Proactor's waiter loop.
type RingDevice struct {
	fd         int
	params     uring.Params
	probe      *uring.RingProbe
	cancelByFD bool

	sqRing, cqRing, sqesMmap []byte

	sq *uring.SubmissionQueue
	cq *uring.CompletionQueue

	cqHead, cqTail *atomic.Uint32

	closeOnce sync.Once
	closeErr  error
}

var _ Device = (*RingDevice)(nil)
var _ api.GracefulShutdown = (*RingDevice)(nil)

// Open creates and maps a new ring per cfg. It sets no IORING_SETUP_* flags,
// so cfg.SQPoll, cfg.SingleIssuer and the cfg.CQEntries request are not
// applied: the kernel runs without a polling thread and sizes the
// completion queue itself.
func Open(cfg uring.RingConfig) (*RingDevice, error) {
	params := uring.Params{SQEntries: cfg.SQEntries}
	if cfg.CQEntries != 0 {
		params.CQEntries = cfg.CQEntries
	}
	if cfg.SQPoll {
		params.SQThreadIdle = cfg.SQPollIdleMillis
	}

	fd, err := uring.Setup(cfg.SQEntries, &params)
	if err != nil {
		return nil, api.FromOSError("io_uring_setup failed", err)
	}

	d := &RingDevice{fd: fd, params: params, cancelByFD: kernelSupportsCancelByFD()}
	if err := d.mapRings(); err != nil {
		closeFD(fd)
		return nil, err
	}

	d.probe = uring.NewRingProbeForFeatures(params.Features)
	if err := d.probe.FillOpSupport(fd); err != nil {
		// Non-fatal: RingProbe.Supports falls back to permissive when the
		// opcode table is empty.
		d.probe.SupportedOps = map[uring.Op]bool{}
	}
	return d, nil
}

func (d *RingDevice) mapRings() error {
	p := &d.params
	singleMmap := p.Features&uring.FeatSingleMmap != 0

	sqRingSize := int(p.SQOff.Array) + int(p.SQEntries)*4
	cqRingSize := int(p.CQOff.CQEs) + int(p.CQEntries)*16
	if singleMmap && cqRingSize > sqRingSize {
		sqRingSize = cqRingSize
	}

	var err error
	d.sqRing, err = uring.Mmap(d.fd, int64(offSQRing), sqRingSize)
	if err != nil {
		return api.FromOSError("mmap SQ ring failed", err)
	}

	if singleMmap {
		d.cqRing = d.sqRing
	} else {
		d.cqRing, err = uring.Mmap(d.fd, int64(offCQRing), cqRingSize)
		if err != nil {
			uring.Munmap(d.sqRing)
			return api.FromOSError("mmap CQ ring failed", err)
		}
	}

	sqeSize := int(p.SQEntries) * int(unsafe.Sizeof(uring.SQE{}))
	d.sqesMmap, err = uring.Mmap(d.fd, int64(offSQEs), sqeSize)
	if err != nil {
		if !singleMmap {
			uring.Munmap(d.cqRing)
		}
		uring.Munmap(d.sqRing)
		return api.FromOSError("mmap SQEs failed", err)
	}

	sqHead := (*atomic.Uint32)(unsafe.Pointer(&d.sqRing[p.SQOff.Head]))
	sqTail := (*atomic.Uint32)(unsafe.Pointer(&d.sqRing[p.SQOff.Tail]))
	sqMask := *(*uint32)(unsafe.Pointer(&d.sqRing[p.SQOff.RingMask]))
	sqArray := unsafe.Slice((*uint32)(unsafe.Pointer(&d.sqRing[p.SQOff.Array])), p.SQEntries)
	sqes := unsafe.Slice((*uring.SQE)(unsafe.Pointer(&d.sqesMmap[0])), p.SQEntries)
	d.sq = uring.NewSubmissionQueue(sqHead, sqTail, sqMask, sqes, sqArray)

	cqHead := (*atomic.Uint32)(unsafe.Pointer(&d.cqRing[p.CQOff.Head]))
	cqTail := (*atomic.Uint32)(unsafe.Pointer(&d.cqRing[p.CQOff.Tail]))
	cqMask := *(*uint32)(unsafe.Pointer(&d.cqRing[p.CQOff.RingMask]))
	cqOverflow := (*atomic.Uint32)(unsafe.Pointer(&d.cqRing[p.CQOff.Overflow]))
	cqes := unsafe.Slice((*uring.CQE)(unsafe.Pointer(&d.cqRing[p.CQOff.CQEs])), *(*uint32)(unsafe.Pointer(&d.cqRing[p.CQOff.RingEntries])))
	d.cq = uring.NewCompletionQueue(cqHead, cqTail, cqOverflow, cqMask, cqes)
	d.cqHead, d.cqTail = cqHead, cqTail

	return nil
}

// Submit pushes s onto the submission queue.
func (d *RingDevice) Submit(s uring.Submission) bool { return d.sq.Push(s) }

// Flush publishes pending submissions via io_uring_enter.
func (d *RingDevice) Flush() (uint32, error) {
	n := d.sq.Flush()
	if n == 0 {
		return 0, nil
	}
	_, err := uring.Enter(d.fd, n, 0, 0)
	if err != nil {
		return 0, api.FromOSError("io_uring_enter submit failed", err)
	}
	return n, nil
}

// Wait implements spec.md §4.1's wait algorithm: flush any pending
// submissions, compute a bounded timeout from deadline, call enter with
// GETEVENTS, then drain whatever is ready into out.
func (d *RingDevice) Wait(deadline time.Time, out []uring.Completion) (int, error) {
	toSubmit := d.sq.Flush()

	var ts *uring.Timespec
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}
		ts = &uring.Timespec{Sec: int64(d / time.Second), Nsec: int64(d % time.Second)}
	}

	minComplete := uint32(1)
	if len(out) == 0 {
		minComplete = 0
	}

	var err error
	if ts != nil {
		_, err = uring.EnterTimeout(d.fd, toSubmit, minComplete, uring.EnterGetevents, ts)
	} else {
		_, err = uring.Enter(d.fd, toSubmit, minComplete, uring.EnterGetevents)
	}
	if err != nil && !isETIME(err) {
		return 0, api.FromOSError("io_uring_enter wait failed", err)
	}

	n := 0
	for n < len(out) {
		c, ok := d.cq.Pop()
		if !ok {
			break
		}
		out[n] = c
		n++
	}
	return n, nil
}

// Probe returns the negotiated ring's feature/opcode support.
func (d *RingDevice) Probe() *uring.RingProbe { return d.probe }

// SupportsCancelByFD reports whether this machine's kernel honors
// IORING_ASYNC_CANCEL_FD, cached at Open since uname(2) never changes for
// the life of the process.
func (d *RingDevice) SupportsCancelByFD() bool { return d.cancelByFD }

// Close unmaps the rings and closes the ring file descriptor. Idempotent.
func (d *RingDevice) Close() error {
	d.closeOnce.Do(func() {
		if d.sqesMmap != nil {
			uring.Munmap(d.sqesMmap)
		}
		if d.params.Features&uring.FeatSingleMmap == 0 && d.cqRing != nil {
			uring.Munmap(d.cqRing)
		}
		if d.sqRing != nil {
			uring.Munmap(d.sqRing)
		}
		d.closeErr = closeFD(d.fd)
	})
	return d.closeErr
}

// Shutdown satisfies api.GracefulShutdown.
func (d *RingDevice) Shutdown() error { return d.Close() }
