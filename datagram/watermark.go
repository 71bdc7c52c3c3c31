package datagram

import "sync/atomic"

// watermarkGate tracks a queue depth against high/low thresholds,
// independently for each direction (send/receive), matching the original
// implementation's per-direction flow control relaxation.
type watermarkGate struct {
	depth atomic.Int64
	high  int64
	low   int64
	above atomic.Bool
}

func newWatermarkGate(high, low int) *watermarkGate {
	return &watermarkGate{high: int64(high), low: int64(low)}
}

// Add adjusts the tracked depth by delta and reports the crossing that just
// happened on this call: +1 for a low-to-high crossing (entering
// back-pressure), -1 for a high-to-low crossing (relieving it), 0 for
// neither. Each crossing is reported exactly once via compare-and-swap, so a
// sustained run of adds/subtracts above or below a threshold only fires the
// matching event at the edge.
func (w *watermarkGate) Add(delta int) int {
	d := w.depth.Add(int64(delta))
	if d >= w.high && w.above.CompareAndSwap(false, true) {
		return 1
	}
	if d <= w.low && w.above.CompareAndSwap(true, false) {
		return -1
	}
	return 0
}

// Blocked reports whether the gate is currently above its high watermark.
func (w *watermarkGate) Blocked() bool { return w.above.Load() }

// Depth returns the current tracked depth.
func (w *watermarkGate) Depth() int64 { return w.depth.Load() }
