// pool/bufferpool.go
//
// BufferPool is the default api.BufferPool: a set of sync.Pool buckets at
// power-of-two size classes. Get rounds up to the smallest class that
// satisfies the request; Put returns the buffer to the class its capacity
// belongs to, or discards it silently if it was never obtained from this
// pool (Pool field mismatch).

package pool

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/kestrelnet/proactor/api"
)

const (
	minClassShift = 9  // 512 bytes, smaller than the smallest realistic datagram
	maxClassShift = 16 // 64 KiB, the io_uring practical ceiling for a single buffer
)

// BufferPool buckets allocations into power-of-two size classes.
type BufferPool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
	inUse      atomic.Int64
}

var _ api.BufferPool = (*BufferPool)(nil)
var _ api.Releaser = (*BufferPool)(nil)

// NewBufferPool constructs an empty pool; classes are populated lazily.
func NewBufferPool() *BufferPool {
	bp := &BufferPool{}
	for i := range bp.classes {
		shift := minClassShift + i
		size := 1 << shift
		bp.classes[i].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return bp
}

func classIndex(size int) int {
	if size <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(size - 1))
	if shift > maxClassShift {
		shift = maxClassShift
	}
	return shift - minClassShift
}

// Get returns a buffer with Data of length size, backed by a capacity-
// matched slab from the appropriate size class. Requests larger than the
// largest class fall back to a one-off, non-pooled allocation.
func (bp *BufferPool) Get(size int) api.Buffer {
	if size < 0 {
		size = 0
	}
	idx := classIndex(size)
	if 1<<(minClassShift+idx) < size {
		bp.totalAlloc.Add(1)
		bp.inUse.Add(1)
		return api.Buffer{Data: make([]byte, size), Pool: bp}
	}

	slab := bp.classes[idx].Get().(*[]byte)
	bp.totalAlloc.Add(1)
	bp.inUse.Add(1)
	return api.Buffer{Data: (*slab)[:size], Pool: bp}
}

// Put returns b to its size class. Buffers whose capacity doesn't align to
// any class (the oversized fallback path) are simply dropped for the GC.
func (bp *BufferPool) Put(b api.Buffer) {
	if b.Data == nil || b.Pool != bp {
		return
	}
	bp.totalFree.Add(1)
	bp.inUse.Add(-1)

	cap := cap(b.Data)
	shift := bits.Len(uint(cap))
	if shift < minClassShift+1 {
		return
	}
	idx := shift - 1 - minClassShift
	if idx < 0 || idx >= len(bp.classes) || cap != 1<<(minClassShift+idx) {
		return
	}
	full := b.Data[:cap]
	bp.classes[idx].Put(&full)
}

// Stats returns current allocation counters for the debug/metrics layer.
func (bp *BufferPool) Stats() api.BufferPoolStats {
	return api.BufferPoolStats{
		TotalAlloc: bp.totalAlloc.Load(),
		TotalFree:  bp.totalFree.Load(),
		InUse:      bp.inUse.Load(),
	}
}
