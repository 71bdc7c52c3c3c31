package uring

import "sync/atomic"

// Submission is the Go-facing description of one unit of submitted work
// (C2). prepare_* routines in device/ fill one of these and hand it to
// SubmissionQueue.Push, which renders it into the kernel SQE layout.
type Submission struct {
	Opcode   Op
	Flags    uint8
	FD       int32
	Addr     uintptr
	Len      uint32
	Offset   uint64
	OpFlags  uint32
	UserData uint64
	BufIndex uint16
}

func (s Submission) toSQE() SQE {
	return SQE{
		Opcode:   uint8(s.Opcode),
		Flags:    s.Flags,
		Fd:       s.FD,
		Off:      s.Offset,
		Addr:     uint64(s.Addr),
		Len:      s.Len,
		OpFlags:  s.OpFlags,
		UserData: s.UserData,
		BufIndex: s.BufIndex,
	}
}

// SubmissionQueue is a thin view over the mmap'd SQ ring (C3). It owns no
// memory itself; device.RingDevice maps the kernel regions and hands this
// type slices into them.
type SubmissionQueue struct {
	head    *atomic.Uint32
	tail    *atomic.Uint32
	mask    uint32
	entries []SQE
	array   []uint32

	// cachedTail is the queue's local, not-yet-published view of tail,
	// advanced by Push and flushed to the shared ring by Flush.
	cachedTail uint32
}

// NewSubmissionQueue wraps pre-mapped kernel memory. head/tail point into
// the ring's shared mmap region; entries and array are slices over it.
func NewSubmissionQueue(head, tail *atomic.Uint32, mask uint32, entries []SQE, array []uint32) *SubmissionQueue {
	return &SubmissionQueue{
		head:       head,
		tail:       tail,
		mask:       mask,
		entries:    entries,
		array:      array,
		cachedTail: tail.Load(),
	}
}

// Capacity returns the number of SQE slots.
func (q *SubmissionQueue) Capacity() int { return len(q.entries) }

// Pending returns the number of entries pushed but not yet flushed.
func (q *SubmissionQueue) Pending() int { return int(q.cachedTail - q.tail.Load()) }

// Room returns free slots available for Push before the ring is full,
// bounded by the kernel-visible head (entries Push'd but not Flush'd still
// count against capacity until the kernel consumes them).
func (q *SubmissionQueue) Room() int {
	return len(q.entries) - int(q.cachedTail-q.head.Load())
}

// Push renders s into the next free SQE slot. Returns false if the queue is
// full (Room() == 0); the caller must Flush and retry, or back off.
func (q *SubmissionQueue) Push(s Submission) bool {
	if q.Room() == 0 {
		return false
	}
	idx := q.cachedTail & q.mask
	q.entries[idx] = s.toSQE()
	q.array[idx] = idx
	q.cachedTail++
	return true
}

// Flush publishes every entry pushed since the last Flush to the kernel by
// storing the new tail with release semantics, and returns how many became
// visible.
func (q *SubmissionQueue) Flush() uint32 {
	n := q.cachedTail - q.tail.Load()
	q.tail.Store(q.cachedTail)
	return n
}
