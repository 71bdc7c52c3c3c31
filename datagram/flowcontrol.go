package datagram

import "sync/atomic"

// flowControl is a pure notification-state tracker: it records whether each
// direction is currently above its watermark, for the FlowControlApplied/
// FlowControlRelaxed events, mirroring the original implementation's
// processSocketReadable/processSocketWritable split. It does not gate
// submission itself. This proactor model has no reactor to register or
// deregister readability/writability interest with: sends leave the send
// queue in FIFO order through the send pump, and each receive is
// submitted independently as soon as a buffer is posted, so blocking the
// pump loop on "applied" here would have nothing left to relax it from
// inside.
type flowControl struct {
	readApplied  atomic.Bool
	writeApplied atomic.Bool
}

// ApplyRead records that the receive direction has crossed its high
// watermark (the receive queue is full of unconsumed datagrams).
func (f *flowControl) ApplyRead() { f.readApplied.Store(true) }

// RelaxRead records that the receive direction has drained back to its low
// watermark.
func (f *flowControl) RelaxRead() { f.readApplied.Store(false) }

// ReadBlocked reports whether the receive direction is currently above its
// high watermark.
func (f *flowControl) ReadBlocked() bool { return f.readApplied.Load() }

// ApplyWrite records that the send direction has crossed its high watermark.
func (f *flowControl) ApplyWrite() { f.writeApplied.Store(true) }

// RelaxWrite records that the send direction has drained back to its low
// watermark.
func (f *flowControl) RelaxWrite() { f.writeApplied.Store(false) }

// WriteBlocked reports whether the send direction is currently above its
// high watermark.
func (f *flowControl) WriteBlocked() bool { return f.writeApplied.Load() }
