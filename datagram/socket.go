//go:build linux

package datagram

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/control"
	"github.com/kestrelnet/proactor/proactor"
	"github.com/kestrelnet/proactor/socket"
	"github.com/kestrelnet/proactor/uring"
)

// Socket is C9: an asynchronous UDP (or, with Options.Family set to
// AF_UNIX, datagram Unix domain) endpoint driven by a Proactor. Socket
// creation and option setting use ordinary blocking syscalls (the same way
// a TCP listener's socket/bind/listen setup is synchronous while its
// accept/read/write are not); every data-path operation submits through the
// Proactor.
type Socket struct {
	ctx   *socket.SocketContext
	p     *proactor.Proactor
	clock api.Scheduler
	log   *log.Logger
	ctrl  *control.Runtime
	pool  api.BufferPool

	opts Options

	sendQ  *sendQueue
	recvQ  *receiveQueue
	flow   flowControl
	limit  *tokenBucket
	zc     *zeroCopyLedger
	tstamp *timestampCorrelator


	pumpMu      sync.Mutex
	relief      api.Cancelable
	rateLimited atomic.Bool

	connected bool
	peer      unix.Sockaddr

	foreignHandle bool
	lastHandle    atomic.Int32

	onEvent func(Event)

	shutdownMu     sync.Mutex
	shutdownPhase  [2]shutdownPhase
	detachGoal     socket.DetachGoal
	onDetach       func(fd int32, err error)
	detachStarted  bool
	endOnce        sync.Once
	endFD          int32
	endErr         error
}

// Open creates a non-blocking datagram socket and attaches it to p.
// Bind/Connect follow as separate calls, per the original implementation's
// DatagramSocket::open/bind/connect split.
func Open(p *proactor.Proactor, pool api.BufferPool, opts Options) (*Socket, error) {
	o := opts.withDefaults()
	family := o.Family
	if family == 0 {
		family = unix.AF_INET
	}

	fd, err := unix.Socket(family, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, api.FromOSError("socket(2) failed", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, api.FromOSError("set nonblocking failed", err)
	}

	ctx := socket.New(int32(fd))
	if err := p.AttachSocket(ctx); err != nil {
		unix.Close(fd)
		return nil, err
	}

	s := &Socket{
		ctx:           ctx,
		p:             p,
		clock:         p.Clock(),
		log:           log.Default(),
		pool:          pool,
		opts:          o,
		sendQ:         newSendQueue(o.SendHighWatermark, o.SendLowWatermark),
		recvQ:         newReceiveQueue(o.ReceiveHighWatermark, o.ReceiveLowWatermark),
		limit:         newTokenBucket(o.RateLimitBytesPerSec, o.RateLimitBurstBytes, p.Clock().Now),
		zc:            newZeroCopyLedger(o.ZeroCopyThreshold),
		tstamp:        newTimestampCorrelator(),
		foreignHandle: family == unix.AF_UNIX,
	}
	s.lastHandle.Store(-1)

	if err := s.applyOptions(); err != nil {
		p.DetachSocket(ctx, socket.DetachGoalClose, func(int32, error) {})
		return nil, err
	}
	return s, nil
}

// applyOptions wires the Options-driven socket tuning surface (spec.md §6)
// through setsockopt(2), skipping anything left at its zero value.
func (s *Socket) applyOptions() error {
	fd := int(s.ctx.FD)
	o := s.opts

	if o.ReceiveBufferBytes > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, o.ReceiveBufferBytes); err != nil {
			return api.FromOSError("SO_RCVBUF failed", err)
		}
	}
	if o.SendBufferBytes > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, o.SendBufferBytes); err != nil {
			return api.FromOSError("SO_SNDBUF failed", err)
		}
	}
	if o.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return api.FromOSError("SO_REUSEADDR failed", err)
		}
	}
	if o.KeepAlive {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return api.FromOSError("SO_KEEPALIVE failed", err)
		}
	}
	if o.MulticastLoopback {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 1); err != nil {
			return api.FromOSError("IP_MULTICAST_LOOP failed", err)
		}
	}
	if o.HopLimit > 0 {
		level, opt, what := unix.IPPROTO_IP, unix.IP_TTL, "IP_TTL failed"
		if o.Family == unix.AF_INET6 {
			level, opt, what = unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, "IPV6_UNICAST_HOPS failed"
		}
		if err := unix.SetsockoptInt(fd, level, opt, o.HopLimit); err != nil {
			return api.FromOSError(what, err)
		}
	}
	return nil
}

// OnEvent installs the observer Socket notifies of watermark/flow-control/
// rate-limit crossings (spec.md §4.4/§6). A nil fn disables notification.
func (s *Socket) OnEvent(fn func(Event)) { s.onEvent = fn }

// Bind assigns a local address.
func (s *Socket) Bind(addr unix.Sockaddr) error {
	if err := unix.Bind(int(s.ctx.FD), addr); err != nil {
		return api.FromOSError("bind(2) failed", err)
	}
	return nil
}

// SetSocketOption exercises the SO_RCVBUF/SO_SNDBUF/SO_REUSEADDR family of
// socket-option setters (spec.md's supplemented socket-tuning surface).
func (s *Socket) SetSocketOption(level, opt, value int) error {
	if err := unix.SetsockoptInt(int(s.ctx.FD), level, opt, value); err != nil {
		return api.FromOSError("setsockopt(2) failed", err)
	}
	return nil
}

// JoinMulticastGroup joins the IPv4 multicast group addr on the local
// interface iface.
func (s *Socket) JoinMulticastGroup(group, iface [4]byte) error {
	mreq := &unix.IPMreq{Multiaddr: group, Interface: iface}
	err := unix.SetsockoptIPMreq(int(s.ctx.FD), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
	if err != nil {
		return api.FromOSError("IP_ADD_MEMBERSHIP failed", err)
	}
	return nil
}

// TakeHandle returns the most recently received foreign file descriptor
// (spec.md §4.4's foreign-handle reception, SCM_RIGHTS over an AF_UNIX
// datagram socket) and clears it, or (-1, false) if none is pending. Only
// ever populated when Options.Family was AF_UNIX.
func (s *Socket) TakeHandle() (int, bool) {
	fd := s.lastHandle.Swap(-1)
	if fd < 0 {
		return -1, false
	}
	return int(fd), true
}

// Connect asynchronously fixes the socket's default peer via the ring
// (spec.md §6 connect), rather than calling connect(2) synchronously.
func (s *Socket) Connect(addr unix.Sockaddr, cb func(error)) {
	sa, err := sockaddrBytes(addr)
	if err != nil {
		cb(err)
		return
	}

	_, ok := s.p.Connect(s.ctx, sa, func(c uring.Completion) {
		if c.Result < 0 {
			cb(api.FromOSError("connect failed", unix.Errno(-c.Result)))
			return
		}
		s.connected = true
		s.peer = addr
		cb(nil)
	})
	if !ok {
		cb(errSocketClosed)
	}
}

// Send enqueues data for asynchronous transmission. It always returns a
// token immediately: rate limiting is applied inside the pump loop by
// holding the entry and retrying, never by rejecting the call outright
// (spec.md §6 scenario: the first sends that fit the budget complete
// immediately, later ones are held, not failed). Watermark crossings only
// emit events; they neither hold nor reject a send.
func (s *Socket) Send(data []byte, deadline time.Time, cb func(n int, err error)) (SendToken, error) {
	if s.ctx.State() != socket.StateAttached {
		return 0, errSocketClosed
	}
	if s.directionPhase(socket.DirectionSend) != phaseOpen {
		return 0, errSocketClosed
	}
	if deadline.IsZero() && s.opts.DefaultDeadline > 0 {
		deadline = s.clock.Now().Add(s.opts.DefaultDeadline)
	}

	e, crossing := s.sendQ.Enqueue(data, deadline, cb)
	s.reportSendCrossing(crossing)
	if !e.deadline.IsZero() {
		e.timer = s.clock.AfterFunc(e.deadline.Sub(s.clock.Now()), func() {
			s.onSendDeadline(e)
		})
	}
	s.pumpSend()
	return e.token, nil
}

func (s *Socket) directionPhase(direction socket.Direction) shutdownPhase {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shutdownPhase[direction]
}

func (s *Socket) reportSendCrossing(crossing int) {
	switch crossing {
	case 1:
		s.flow.ApplyWrite()
		s.emit(EventHighWatermark, socket.DirectionSend)
		s.emit(EventFlowControlApplied, socket.DirectionSend)
	case -1:
		s.flow.RelaxWrite()
		s.emit(EventLowWatermark, socket.DirectionSend)
		s.emit(EventFlowControlRelaxed, socket.DirectionSend)
	}
}

func (s *Socket) reportRecvCrossing(crossing int) {
	switch crossing {
	case 1:
		s.flow.ApplyRead()
		s.emit(EventHighWatermark, socket.DirectionReceive)
		s.emit(EventFlowControlApplied, socket.DirectionReceive)
	case -1:
		s.flow.RelaxRead()
		s.emit(EventLowWatermark, socket.DirectionReceive)
		s.emit(EventFlowControlRelaxed, socket.DirectionReceive)
	}
}

// pumpSend drains the send queue in FIFO order, submitting at most one
// entry per call, the async analogue of the original implementation's
// processSocketWritable. It runs on every Send, on every send completion
// (onWritable) and when a rate-relief timer fires; it does not wait for an
// earlier submission to complete, so more than one sendmsg can be
// outstanding per Socket.
func (s *Socket) pumpSend() {
	s.pumpMu.Lock()
	defer s.pumpMu.Unlock()

	for {
		entry, ok := s.sendQ.Peek()
		if !ok {
			return
		}

		if entry.isSentinel() {
			s.sendQ.Remove(entry.token)
			entry.sentinel()
			continue
		}
		if entry.canceled.Load() {
			if crossing, removed := s.sendQ.Remove(entry.token); removed {
				s.reportSendCrossing(crossing)
			}
			entry.finish(0, errOperationCancelled)
			continue
		}
		if entry.expired(s.clock.Now()) {
			if crossing, removed := s.sendQ.Remove(entry.token); removed {
				s.reportSendCrossing(crossing)
			}
			entry.finish(0, errDeadlineExpired)
			continue
		}
		if !s.limit.Allow(len(entry.data)) {
			s.scheduleRateRelief(len(entry.data))
			return
		}
		if s.rateLimited.CompareAndSwap(true, false) {
			s.emit(EventRateLimitRelaxed, socket.DirectionSend)
		}

		crossing, removed := s.sendQ.Remove(entry.token)
		if !removed {
			continue
		}
		s.reportSendCrossing(crossing)
		s.submitSend(entry)
		return
	}
}

// scheduleRateRelief arranges for pumpSend to retry once the token bucket
// has recovered enough budget for n bytes (spec.md §6's hold-and-retry, in
// place of rejecting the send outright). Must be called with pumpMu held.
func (s *Socket) scheduleRateRelief(n int) {
	if s.rateLimited.CompareAndSwap(false, true) {
		s.emit(EventRateLimitApplied, socket.DirectionSend)
	}
	if s.relief != nil {
		return
	}
	relief := s.limit.RelieveAfter(n)
	s.relief = s.clock.AfterFunc(relief, func() {
		s.pumpMu.Lock()
		s.relief = nil
		s.pumpMu.Unlock()
		s.pumpSend()
	})
}

func (s *Socket) submitSend(entry *sendEntry) {
	payload := entry.data
	if s.opts.Compression != nil {
		if out, err := s.opts.Compression.Deflate(payload); err == nil {
			payload = out
		}
	}

	seq := s.tstamp.BeginSend(s.clock.Now())
	useZC := s.zc.ShouldUse(len(payload))
	hdr, iov := buildSendMsghdr(payload, nil)

	ev, ok := s.p.Send(s.ctx, unsafe.Pointer(hdr), 0, useZC, func(c uring.Completion) {
		runtime.KeepAlive(hdr)
		runtime.KeepAlive(iov)
		runtime.KeepAlive(payload)

		if c.IsNotification() {
			s.zc.endNotify()
			if c.IsAvoided() {
				s.zc.MarkAvoided()
			}
			return
		}
		if useZC {
			s.zc.beginNotify()
		}
		if c.Result < 0 {
			s.tstamp.Forget(seq)
			entry.finish(0, api.FromOSError("sendmsg failed", unix.Errno(-c.Result)))
		} else {
			entry.finish(int(c.Result), nil)
		}
		if !c.HasMore() {
			s.onWritable()
		}
	})
	if !ok {
		entry.finish(0, errSocketClosed)
		return
	}
	entry.ev.Store(ev)
}

// onSendDeadline fires from the scheduler when entry's deadline elapses
// before it finished. If the entry is still queued it is simply dropped; if
// it is already in flight, its ring operation is cancelled so the kernel
// reclaims the resources, and either way the caller sees WouldBlock rather
// than waiting on a cancellation completion (spec.md §7 deadline taxonomy).
func (s *Socket) onSendDeadline(entry *sendEntry) {
	if crossing, removed := s.sendQ.Remove(entry.token); removed {
		s.reportSendCrossing(crossing)
		entry.finish(0, errDeadlineExpired)
		return
	}
	if ev := entry.ev.Load(); ev != nil {
		s.p.Cancel(ev)
	}
	entry.finish(0, errDeadlineExpired)
}

// onWritable is the completion-driven hook that drains whatever the send
// queue accumulated while a previous send was in flight.
func (s *Socket) onWritable() { s.pumpSend() }

// Receive posts a buffer to receive the next datagram into.
func (s *Socket) Receive(buf []byte, deadline time.Time, cb func(n int, from []byte, err error)) (ReceiveToken, error) {
	if s.ctx.State() != socket.StateAttached {
		return 0, errSocketClosed
	}
	if s.directionPhase(socket.DirectionReceive) != phaseOpen {
		return 0, errReceiveShutdown
	}
	if deadline.IsZero() && s.opts.DefaultDeadline > 0 {
		deadline = s.clock.Now().Add(s.opts.DefaultDeadline)
	}

	entry, crossing := s.recvQ.Add(buf, deadline, cb)
	s.reportRecvCrossing(crossing)

	if !entry.deadline.IsZero() {
		entry.timer = s.clock.AfterFunc(entry.deadline.Sub(s.clock.Now()), func() {
			s.onReceiveDeadline(entry)
		})
	}

	s.pumpReceive(entry)
	return entry.token, nil
}

func (s *Socket) pumpReceive(entry *recvEntry) {
	fromAddr := make([]byte, unix.SizeofSockaddrAny)

	var control []byte
	if s.foreignHandle {
		control = make([]byte, unix.CmsgSpace(4))
	}
	hdr, iov := buildRecvMsghdr(entry.buf, fromAddr, control)

	ev, ok := s.p.Receive(s.ctx, unsafe.Pointer(hdr), 0, func(c uring.Completion) {
		runtime.KeepAlive(hdr)
		runtime.KeepAlive(iov)
		runtime.KeepAlive(fromAddr)
		runtime.KeepAlive(control)

		if _, crossing, removed := s.recvQ.Remove(entry.token); removed {
			s.reportRecvCrossing(crossing)
		}
		if entry.canceled.Load() {
			entry.finish(0, nil, errOperationCancelled)
			return
		}
		if c.Result < 0 {
			entry.finish(0, nil, api.FromOSError("recvmsg failed", unix.Errno(-c.Result)))
			return
		}

		s.extractForeignHandle(hdr, control)

		if s.opts.Compression != nil {
			if out, err := s.opts.Compression.Inflate(entry.buf[:c.Result]); err == nil && len(out) <= cap(entry.buf) {
				n := copy(entry.buf[:cap(entry.buf)], out)
				entry.finish(n, fromAddr[:hdr.Namelen], nil)
				return
			}
		}
		entry.finish(int(c.Result), fromAddr[:hdr.Namelen], nil)
	})
	if !ok {
		if _, crossing, removed := s.recvQ.Remove(entry.token); removed {
			s.reportRecvCrossing(crossing)
		}
		entry.finish(0, nil, errSocketClosed)
		return
	}
	entry.ev.Store(ev)
}

// extractForeignHandle parses an SCM_RIGHTS ancillary message off a
// completed receive, when foreign-handle reception is enabled, stashing the
// first descriptor found for a later TakeHandle call.
func (s *Socket) extractForeignHandle(hdr *unix.Msghdr, control []byte) {
	if !s.foreignHandle || hdr.Controllen == 0 {
		return
	}
	msgs, err := unix.ParseSocketControlMessage(control[:hdr.Controllen])
	if err != nil {
		return
	}
	for _, m := range msgs {
		fds, err := unix.ParseUnixRights(&m)
		if err != nil || len(fds) == 0 {
			continue
		}
		s.lastHandle.Store(int32(fds[0]))
	}
}

func (s *Socket) onReceiveDeadline(entry *recvEntry) {
	if _, crossing, removed := s.recvQ.Remove(entry.token); removed {
		s.reportRecvCrossing(crossing)
		entry.finish(0, nil, errDeadlineExpired)
		return
	}
	if ev := entry.ev.Load(); ev != nil {
		s.p.Cancel(ev)
	}
	entry.finish(0, nil, errDeadlineExpired)
}

// Cancel aborts a previously issued Send or Receive by its token.
func (s *Socket) Cancel(token uint64) error {
	if err := s.sendQ.Cancel(SendToken(token)); err == nil {
		s.pumpSend()
		return nil
	}
	return s.recvQ.Cancel(ReceiveToken(token))
}

// SetZeroCopyThreshold adjusts the zero-copy engagement threshold.
func (s *Socket) SetZeroCopyThreshold(threshold int) { s.zc.SetThreshold(threshold) }

// Release drains in-flight operations on both directions and hands the fd
// back to the caller without closing it (the original implementation's
// DatagramSocket::release).
func (s *Socket) Release() (int, error) {
	fd, err := s.end(socket.DetachGoalExport)
	return int(fd), err
}

// Close shuts down both directions (deferring the write half-close until
// any queued sends have drained), detaches from the proactor, and closes
// the fd.
func (s *Socket) Close() error {
	_, err := s.end(socket.DetachGoalClose)
	return err
}

var _ api.GracefulShutdown = (*Socket)(nil)

// Shutdown satisfies api.GracefulShutdown by performing a full, orderly
// close of both directions.
func (s *Socket) Shutdown() error { return s.Close() }

// buildSendMsghdr builds a one-iovec msghdr for an outgoing datagram, using
// to as the destination when the socket is unconnected (nil once Connect
// has fixed a default peer).
func buildSendMsghdr(data, to []byte) (*unix.Msghdr, *unix.Iovec) {
	iov := &unix.Iovec{}
	if len(data) > 0 {
		iov.Base = &data[0]
	}
	iov.SetLen(len(data))

	hdr := &unix.Msghdr{
		Iov:    iov,
		Iovlen: 1,
	}
	if len(to) > 0 {
		hdr.Name = &to[0]
		hdr.Namelen = uint32(len(to))
	}
	return hdr, iov
}

// buildRecvMsghdr builds a one-iovec msghdr for an incoming datagram, with
// from sized to hold any sockaddr family the kernel reports, and control
// attached as the ancillary-data buffer when foreign-handle reception is
// enabled (nil otherwise).
func buildRecvMsghdr(buf, from, control []byte) (*unix.Msghdr, *unix.Iovec) {
	iov := &unix.Iovec{}
	if len(buf) > 0 {
		iov.Base = &buf[0]
	}
	iov.SetLen(len(buf))

	hdr := &unix.Msghdr{
		Iov:    iov,
		Iovlen: 1,
	}
	if len(from) > 0 {
		hdr.Name = &from[0]
		hdr.Namelen = uint32(len(from))
	}
	if len(control) > 0 {
		hdr.Control = &control[0]
		hdr.Controllen = uint64(len(control))
	}
	return hdr, iov
}

// sockaddrBytes packs a unix.Sockaddr into the raw wire form io_uring's
// connect/sendmsg opcodes expect, since x/sys/unix keeps its own marshaling
// unexported.
func sockaddrBytes(addr unix.Sockaddr) ([]byte, error) {
	switch a := addr.(type) {
	case *unix.SockaddrInet4:
		var raw unix.RawSockaddrInet4
		raw.Family = unix.AF_INET
		raw.Port = htons(uint16(a.Port))
		raw.Addr = a.Addr
		return rawToBytes(unsafe.Pointer(&raw), unix.SizeofSockaddrInet4), nil
	case *unix.SockaddrInet6:
		var raw unix.RawSockaddrInet6
		raw.Family = unix.AF_INET6
		raw.Port = htons(uint16(a.Port))
		raw.Scope_id = a.ZoneId
		raw.Addr = a.Addr
		return rawToBytes(unsafe.Pointer(&raw), unix.SizeofSockaddrInet6), nil
	default:
		return nil, api.NewError(api.ErrCodeInvalidArgument, "unsupported sockaddr type")
	}
}

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | v>>8
}

func rawToBytes(p unsafe.Pointer, n int) []byte {
	out := make([]byte, n)
	src := unsafe.Slice((*byte)(p), n)
	copy(out, src)
	return out
}
