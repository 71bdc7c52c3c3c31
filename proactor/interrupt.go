package proactor

import "github.com/kestrelnet/proactor/uring"

// InterruptOne wakes the waiter loop early so a newly enqueued deferred
// functor (e.g. a just-submitted send) gets flushed without waiting for the
// current bounded wait to expire. A real kernel wait is already bounded by
// nextDeadline, so this is a convenience for latency, not correctness.
func (p *Proactor) InterruptOne() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// InterruptAll enqueues a deferred NOP submission, guaranteeing the
// device's next Flush call actually issues an io_uring_enter even if
// nothing else was queued. Shutdown does not call it.
func (p *Proactor) InterruptAll() {
	p.enqueueDeferred(func(p *Proactor) {
		p.device.Submit(uring.Submission{Opcode: uring.OpNop})
	})
}
