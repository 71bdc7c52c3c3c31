package device

import (
	"time"

	"github.com/kestrelnet/proactor/uring"
)

// Device is the interface Proactor drives its event loop through. RingDevice
// is the real io_uring-backed implementation; faketest.Device stands in for
// tests that don't need a live kernel.
type Device interface {
	// Submit pushes s onto the submission queue. Returns false if the queue
	// has no room; the caller should Flush and retry.
	Submit(s uring.Submission) bool

	// Flush publishes pending submissions to the kernel, returning how many
	// became visible.
	Flush() (uint32, error)

	// Wait blocks until at least one completion is ready, a timer deadline
	// (if any) elapses, or the deadline parameter passes, then drains ready
	// completions into out. Returns the number written.
	Wait(deadline time.Time, out []uring.Completion) (int, error)

	// Probe reports the negotiated ring's features and opcode support.
	Probe() *uring.RingProbe

	// SupportsCancelByFD reports whether cancel-by-handle
	// (IORING_ASYNC_CANCEL_FD) is available, gated by kernel version 5.19
	// rather than anything RingProbe's opcode query can report. Proactor
	// falls back to per-event cancellation when this is false.
	SupportsCancelByFD() bool

	// Close tears down the ring and releases its kernel resources.
	Close() error
}
