// Package uring implements the kernel-facing half of the proactor: raw
// io_uring syscalls and ring layout (sys_linux.go, sys_types.go), ring
// capability probing (C1: RingConfig/RingProbe in probe.go), and the
// submission/completion record types and their queues (C2-C4: submission.go,
// completion.go).
//
// Everything above this package talks to the kernel only through the
// Device interface in device/; uring/ owns the unsafe pointer arithmetic
// and mmap bookkeeping so the rest of the module never does.
package uring
