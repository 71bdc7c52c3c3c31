// Package device implements C5, RingDevice: the owner of one io_uring file
// descriptor and its mmap'd SQ/CQ rings. It exposes submit/wait/flush and
// the prepare_* routines (spec.md §4.2) that turn a high-level intent
// (accept, connect, send, receive, timeout, cancel) into a uring.Submission.
package device
