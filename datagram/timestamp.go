package datagram

import (
	"sync"
	"time"
)

// timestampCorrelator keys outgoing/incoming timestamps by a monotonic
// send-counter (the original implementation's privateTimestampOutgoingData/
// privateTimestampUpdate), not by user-data or buffer pointer: SO_TIMESTAMPING
// notifications arrive on a separate error-queue recv and must be matched
// back to the send that produced them by sequence, not by identity.
type timestampCorrelator struct {
	mu      sync.Mutex
	counter uint64
	sent    map[uint64]time.Time
	acked   map[uint64]time.Time
}

func newTimestampCorrelator() *timestampCorrelator {
	return &timestampCorrelator{
		sent:  make(map[uint64]time.Time),
		acked: make(map[uint64]time.Time),
	}
}

// BeginSend allocates the next sequence number and records when the send
// was issued, returning the sequence to tag the outgoing submission with.
func (t *timestampCorrelator) BeginSend(now time.Time) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter++
	seq := t.counter
	t.sent[seq] = now
	return seq
}

// CompleteSend records the kernel-reported hardware/software timestamp for
// sequence seq, once its SO_TIMESTAMPING notification arrives.
func (t *timestampCorrelator) CompleteSend(seq uint64, kernelTime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acked[seq] = kernelTime
}

// Latency returns the wall-clock span between BeginSend and the matching
// CompleteSend for seq, if both have been recorded.
func (t *timestampCorrelator) Latency(seq uint64) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok1 := t.sent[seq]
	end, ok2 := t.acked[seq]
	if !ok1 || !ok2 {
		return 0, false
	}
	delete(t.sent, seq)
	delete(t.acked, seq)
	return end.Sub(start), true
}

// Forget discards a pending sequence without a matching completion (e.g.
// the send failed and no timestamp will ever arrive).
func (t *timestampCorrelator) Forget(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sent, seq)
	delete(t.acked, seq)
}
