package proactor

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/device"
	"github.com/kestrelnet/proactor/event"
	"github.com/kestrelnet/proactor/socket"
	"github.com/kestrelnet/proactor/uring"
)

// AttachSocket registers ctx with the proactor (spec.md §4.3 attach_socket)
// so CancelSocket and DetachSocket can later find it by fd. Idempotent.
func (p *Proactor) AttachSocket(ctx *socket.SocketContext) error {
	if ctx.State() != socket.StateAttached {
		return api.NewError(api.ErrCodeInvalidArgument, "attach_socket: context not in Attached state")
	}
	p.socketsMu.Lock()
	p.sockets[ctx.FD] = ctx
	p.socketsMu.Unlock()
	return nil
}

// submitOn is the shared plumbing behind Accept/Connect/Send/Receive: charge
// ctx's in-flight counter, submit through the ring, and release the charge
// once the completion has been dispatched (or the submission itself failed
// to enqueue). Returns false without calling cb if ctx can no longer accept
// new operations.
func (p *Proactor) submitOn(ctx *socket.SocketContext, kind event.Kind, s uring.Submission, cb func(uring.Completion)) (*event.Event, bool) {
	if !ctx.BeginOp() {
		return nil, false
	}
	ev := p.Submit(kind, s, func(c uring.Completion) {
		defer ctx.EndOp()
		cb(c)
	})
	return ev, true
}

// Accept submits an accept(2) on ctx's listening fd. Datagram sockets have
// no accept; this exists for the stream-listener capability spec.md §4.3
// names and is not exercised by datagram.Socket.
func (p *Proactor) Accept(ctx *socket.SocketContext, cb func(uring.Completion)) (*event.Event, bool) {
	return p.submitOn(ctx, event.KindAccept, device.PrepareAccept(ctx.FD, 0), cb)
}

// Connect submits a connect(2) against sockaddr over the ring.
func (p *Proactor) Connect(ctx *socket.SocketContext, sockaddr []byte, cb func(uring.Completion)) (*event.Event, bool) {
	return p.submitOn(ctx, event.KindConnect, device.PrepareConnect(ctx.FD, sockaddr, 0), cb)
}

// Send submits a sendmsg (or sendmsg_zc, per zeroCopy) over the ring.
func (p *Proactor) Send(ctx *socket.SocketContext, msghdr unsafe.Pointer, flags uint32, zeroCopy bool, cb func(uring.Completion)) (*event.Event, bool) {
	return p.submitOn(ctx, event.KindSend, device.PrepareSendmsg(ctx.FD, msghdr, flags, 0, zeroCopy), cb)
}

// Receive submits a recvmsg over the ring.
func (p *Proactor) Receive(ctx *socket.SocketContext, msghdr unsafe.Pointer, flags uint32, cb func(uring.Completion)) (*event.Event, bool) {
	return p.submitOn(ctx, event.KindReceive, device.PrepareRecvmsg(ctx.FD, msghdr, flags, 0), cb)
}

// ShutdownSocket issues the OS-level half-close for direction. It does not
// dispatch a completion event: spec.md §4.4's per-socket shutdown state
// machine decides what to announce to its own caller, the proactor only
// performs the syscall.
func (p *Proactor) ShutdownSocket(ctx *socket.SocketContext, direction socket.Direction) error {
	how := unix.SHUT_WR
	if direction == socket.DirectionReceive {
		how = unix.SHUT_RD
	}
	if err := unix.Shutdown(int(ctx.FD), how); err != nil {
		return api.FromOSError("shutdown(2) failed", err)
	}
	return nil
}

// CancelSocket cancels every operation pending on ctx (spec.md §4.3
// cancel(socket)). It prefers cancel-by-handle when the device's kernel
// supports it, falling back to canceling each tracked event individually
// (spec.md §4.2's cancel-by-event) otherwise.
func (p *Proactor) CancelSocket(ctx *socket.SocketContext) {
	p.enqueueDeferred(func(p *Proactor) {
		if p.device.SupportsCancelByFD() {
			p.device.Submit(device.PrepareAsyncCancelFD(ctx.FD))
			return
		}

		p.eventsMu.Lock()
		var ids []uint64
		for id, e := range p.events {
			if e.SocketFD == ctx.FD && e.Status == event.StatusSubmitted {
				ids = append(ids, id)
			}
		}
		p.eventsMu.Unlock()

		for _, id := range ids {
			p.device.Submit(device.PrepareAsyncCancel(id))
		}
	})
}

// DetachSocket cancels all outstanding operations on ctx, waits for them to
// drain, then closes or exports the fd per goal and invokes cb exactly once
// with the fd and any close error (spec.md §4.3 detach_socket). Safe to call
// from any goroutine.
func (p *Proactor) DetachSocket(ctx *socket.SocketContext, goal socket.DetachGoal, cb func(fd int32, err error)) {
	p.CancelSocket(ctx)
	drained := ctx.BeginDrain()

	go func() {
		<-drained

		final := socket.StateClosed
		if goal == socket.DetachGoalExport {
			final = socket.StateDetached
		}
		err := ctx.Finish(final)
		if err == nil && goal == socket.DetachGoalClose {
			if cerr := unix.Close(int(ctx.FD)); cerr != nil {
				err = api.FromOSError("close(2) failed", cerr)
			}
		}

		p.socketsMu.Lock()
		delete(p.sockets, ctx.FD)
		p.socketsMu.Unlock()

		if cb != nil {
			cb(ctx.FD, err)
		}
	}()
}
