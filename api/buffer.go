package api

// Buffer is a reusable, pool-owned byte slice. It is a struct rather than
// an interface to avoid boxing on the datagram hot path.
type Buffer struct {
	Data []byte
	Pool Releaser
}

// Releaser decouples Buffer from a concrete BufferPool implementation.
type Releaser interface {
	Put(Buffer)
}

// Bytes returns the backing slice.
func (b Buffer) Bytes() []byte { return b.Data }

// Capacity returns the capacity of the backing slice.
func (b Buffer) Capacity() int { return cap(b.Data) }

// Copy returns an independent copy of the buffer's contents.
func (b Buffer) Copy() []byte {
	dup := make([]byte, len(b.Data))
	copy(dup, b.Data)
	return dup
}

// Slice returns a view over [from:to) sharing the same backing array. The
// view is not independently releasable; release the original Buffer.
func (b Buffer) Slice(from, to int) Buffer {
	if from < 0 || to > len(b.Data) || from > to {
		return Buffer{Pool: b.Pool}
	}
	return Buffer{Data: b.Data[from:to], Pool: b.Pool}
}

// Release returns the buffer to the pool it was allocated from, if any.
func (b Buffer) Release() {
	if b.Pool != nil {
		b.Pool.Put(b)
	}
}

// BufferPool is the narrow "blob buffer pool" contract spec.md §1 lists as
// an external collaborator: core allocates receive/send scratch space
// through this interface without depending on a concrete allocator.
type BufferPool interface {
	// Get returns a buffer whose Data has length size.
	Get(size int) Buffer
	// Put returns a buffer previously obtained from Get.
	Put(b Buffer)
	Stats() BufferPoolStats
}

// BufferPoolStats summarizes pool usage for the debug/metrics layer.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}
