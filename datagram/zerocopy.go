package datagram

import "sync/atomic"

// zeroCopyLedger tracks in-flight zero-copy sends: a send using
// IORING_OP_SENDMSG_ZC completes twice (the original result, then a
// notification once the kernel releases the buffer), and the buffer must
// not be reused or released until the notification arrives.
type zeroCopyLedger struct {
	threshold int
	inFlight  atomic.Int64
	avoided   atomic.Int64
	disabled  atomic.Bool
}

func newZeroCopyLedger(threshold int) *zeroCopyLedger {
	return &zeroCopyLedger{threshold: threshold}
}

// ShouldUse decides whether a send of n bytes should engage zero-copy. Once
// the kernel has reported an Avoided notification (copy fallback), the
// ledger stops offering zero-copy for the rest of the socket's life: a
// kernel that silently falls back once is expected to keep doing so for this
// send path.
func (z *zeroCopyLedger) ShouldUse(n int) bool {
	if z.disabled.Load() {
		return false
	}
	if z.threshold == ZeroCopyNever {
		return false
	}
	if z.threshold == ZeroCopyDefault {
		return n >= defaultZeroCopyThreshold
	}
	return n >= z.threshold
}

// SetThreshold updates the engagement threshold (ZeroCopyNever,
// ZeroCopyDefault, or an explicit byte count).
func (z *zeroCopyLedger) SetThreshold(threshold int) {
	z.threshold = threshold
}

// MarkAvoided records a kernel-reported Avoided notification (the send
// completed by ordinary copy despite being submitted as SENDMSG_ZC) and
// disables further zero-copy engagement on this ledger.
func (z *zeroCopyLedger) MarkAvoided() {
	z.avoided.Add(1)
	z.disabled.Store(true)
}

func (z *zeroCopyLedger) beginNotify() { z.inFlight.Add(1) }
func (z *zeroCopyLedger) endNotify()   { z.inFlight.Add(-1) }

// Stats reports the ledger's counters.
type ZeroCopyStats struct {
	InFlight int64
	Avoided  int64
}

func (z *zeroCopyLedger) Stats() ZeroCopyStats {
	return ZeroCopyStats{InFlight: z.inFlight.Load(), Avoided: z.avoided.Load()}
}
