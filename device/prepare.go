package device

import (
	"unsafe"

	"github.com/kestrelnet/proactor/uring"
)

// The prepare_* routines of spec.md §4.2: each turns a high-level intent
// into a uring.Submission carrying the right opcode, fd, and address/length
// pair. None of them touch the ring; Proactor calls Device.Submit with the
// result.

// PrepareAccept builds a connectionless accept is not applicable to
// datagram sockets; this module's only prepare_accept use is for a future
// stream listener and is not exercised by datagram.Socket.
func PrepareAccept(fd int32, userData uint64) uring.Submission {
	return uring.Submission{Opcode: uring.OpAccept, FD: fd, UserData: userData}
}

// PrepareConnect builds a connect submission against sockaddr, used by
// datagram.Socket.Connect to fix the default peer of an unconnected UDP
// socket.
func PrepareConnect(fd int32, sockaddr []byte, userData uint64) uring.Submission {
	return uring.Submission{
		Opcode:   uring.OpConnect,
		FD:       fd,
		Addr:     addrOf(sockaddr),
		Off:      uint64(len(sockaddr)),
		UserData: userData,
	}
}

// PrepareSendmsg builds a send submission over a msghdr, used for every
// datagram send (connected or not, zero-copy or not — callers pick the
// opcode via zeroCopy).
func PrepareSendmsg(fd int32, msghdr unsafe.Pointer, flags uint32, userData uint64, zeroCopy bool) uring.Submission {
	op := uring.OpSendmsg
	if zeroCopy {
		op = uring.OpSendmsgZC
	}
	return uring.Submission{
		Opcode:   op,
		FD:       fd,
		Addr:     uintptr(msghdr),
		Len:      1,
		OpFlags:  flags,
		UserData: userData,
	}
}

// PrepareRecvmsg builds a receive submission over a msghdr.
func PrepareRecvmsg(fd int32, msghdr unsafe.Pointer, flags uint32, userData uint64) uring.Submission {
	return uring.Submission{
		Opcode:   uring.OpRecvmsg,
		FD:       fd,
		Addr:     uintptr(msghdr),
		Len:      1,
		OpFlags:  flags,
		UserData: userData,
	}
}

// PrepareTimeout builds a relative timeout submission for ring-native
// expiry. datagram.Socket does not use it: its deadlines are driven by the
// proactor's scheduler.
func PrepareTimeout(ts *uring.Timespec, userData uint64) uring.Submission {
	return uring.Submission{
		Opcode:   uring.OpTimeout,
		Addr:     uintptr(unsafe.Pointer(ts)),
		Len:      1,
		UserData: userData,
	}
}

// PrepareAsyncCancel builds a cancel-by-event request targeting the
// submission originally issued with targetUserData. Per spec.md §3, cancel
// ops always carry user-data zero: the cancel itself is fire-and-forget and
// is never dispatched to a registered Event.
func PrepareAsyncCancel(targetUserData uint64) uring.Submission {
	return uring.Submission{
		Opcode: uring.OpAsyncCancel,
		FD:     -1,
		Addr:   uintptr(targetUserData),
	}
}

// PrepareAsyncCancelFD builds a cancel-by-handle request that cancels every
// operation pending on fd, used by Proactor.CancelSocket on kernels new
// enough to support IORING_ASYNC_CANCEL_FD (>= 5.19). Also fire-and-forget:
// user-data is zero.
func PrepareAsyncCancelFD(fd int32) uring.Submission {
	return uring.Submission{
		Opcode:  uring.OpAsyncCancel,
		FD:      fd,
		OpFlags: uring.CancelFlagAll | uring.CancelFlagFD,
	}
}

// PrepareShutdown builds an OS-level half-close submission for fd (SHUT_RD
// or SHUT_WR, carried in the SQE's len field as the kernel reads it).
// User-data is zero. The datagram shutdown state machine does not use it:
// Proactor.ShutdownSocket calls shutdown(2) directly.
func PrepareShutdown(fd int32, how uint32) uring.Submission {
	return uring.Submission{Opcode: uring.OpShutdown, FD: fd, Len: how}
}

// PrepareClose builds a close submission for fd. Proactor.DetachSocket
// does not use it: it closes the descriptor with close(2) directly.
func PrepareClose(fd int32, userData uint64) uring.Submission {
	return uring.Submission{Opcode: uring.OpClose, FD: fd, UserData: userData}
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
