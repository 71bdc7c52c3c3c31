//go:build linux

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux assigns these syscall numbers on amd64/arm64; x/sys/unix has not
// picked up io_uring wrappers, so the module calls unix.Syscall directly
// with the raw numbers, the same way every io_uring binding in the
// ecosystem does.
const (
	sysIOUringSetup    = 425
	sysIOUringEnter    = 426
	sysIOUringRegister = 427
)

// Register opcodes (IORING_REGISTER_*) needed by RingDevice.
const (
	registerBuffers      = 0
	unregisterBuffers    = 1
	registerFiles        = 2
	unregisterFiles      = 3
	registerEventfd      = 4
	unregisterEventfd    = 5
	registerProbe        = 8
	registerEventfdAsync = 7
)

// Setup creates a new io_uring instance and returns its file descriptor.
func Setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := unix.Syscall(sysIOUringSetup, uintptr(entries), uintptr(unsafe.Pointer(params)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(fd), nil
}

// Enter submits toSubmit SQEs and optionally waits for minComplete CQEs.
func Enter(fd int, toSubmit, minComplete, flags uint32) (int, error) {
	n, _, errno := unix.Syscall6(sysIOUringEnter, uintptr(fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// EnterTimeout is Enter with an IORING_ENTER_EXT_ARG timeout, used so
// RingDevice.wait can bound a kernel wait without a linked timeout SQE.
func EnterTimeout(fd int, toSubmit, minComplete, flags uint32, ts *Timespec) (int, error) {
	arg := GetEventsArg{Ts: uint64(uintptr(unsafe.Pointer(ts)))}
	n, _, errno := unix.Syscall6(sysIOUringEnter, uintptr(fd), uintptr(toSubmit), uintptr(minComplete),
		uintptr(flags|EnterExtArg), uintptr(unsafe.Pointer(&arg)), unsafe.Sizeof(arg))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// Register performs an IORING_REGISTER_* operation.
func register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	_, _, errno := unix.Syscall6(sysIOUringRegister, uintptr(fd), uintptr(opcode), uintptr(arg), uintptr(nrArgs), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// RegisterEventfd arms eventfd-based completion notification for a ring
// that a non-participating goroutine needs to poll with epoll/select.
func RegisterEventfd(fd, eventfd int) error {
	efd := int32(eventfd)
	return register(fd, registerEventfd, unsafe.Pointer(&efd), 1)
}

// RegisterProbe queries which opcodes the running kernel implements.
func RegisterProbe(fd int, probe *Probe) error {
	return register(fd, registerProbe, unsafe.Pointer(probe), uint32(len(probe.Ops)))
}

// Mmap maps length bytes of the ring's shared memory at offset.
func Mmap(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
}

// Munmap unmaps a region previously returned by Mmap.
func Munmap(b []byte) error {
	return unix.Munmap(b)
}
