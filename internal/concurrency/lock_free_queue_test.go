package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeueFIFO(t *testing.T) {
	q := NewQueue[int](4)
	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))
	require.True(t, q.Enqueue(3))

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestQueueDequeueEmptyReportsNotOK(t *testing.T) {
	q := NewQueue[int](4)
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueueEnqueueFullReportsFalse(t *testing.T) {
	q := NewQueue[int](2)
	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))
	assert.False(t, q.Enqueue(3), "capacity is rounded up to the next power of two, not beyond it")
}

func TestQueueCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	q := NewQueue[int](3)
	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i), "capacity(3) should round up to 4 slots")
	}
	assert.False(t, q.Enqueue(4))
}

// TestQueueConcurrentProducersConsumers exercises the multi-producer/
// multi-consumer path event.Pool relies on: Get is called from arbitrary
// caller goroutines via Proactor.Submit/Cancel, so Enqueue/Dequeue must
// tolerate concurrent callers on both sides without losing or duplicating
// an item.
func TestQueueConcurrentProducersConsumers(t *testing.T) {
	const producers = 8
	const perProducer = 500
	const total = producers * perProducer

	q := NewQueue[int](1024)
	var wg sync.WaitGroup

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			// capacity(1024) is smaller than total(4000): producers
			// sometimes retry against a full queue here, exercising the
			// same contention path consumers exercise against an empty one.
			for i := 0; i < perProducer; i++ {
				for !q.Enqueue(base*perProducer + i) {
				}
			}
		}(p)
	}

	results := make(chan int, total)
	var collected atomic.Int64
	var consumerWG sync.WaitGroup
	consumerWG.Add(4)
	for c := 0; c < 4; c++ {
		go func() {
			defer consumerWG.Done()
			for collected.Load() < int64(total) {
				v, ok := q.Dequeue()
				if !ok {
					continue
				}
				results <- v
				collected.Add(1)
			}
		}()
	}

	wg.Wait()
	consumerWG.Wait()
	close(results)

	seen := make(map[int]bool, total)
	for v := range results {
		assert.False(t, seen[v], "item %d dequeued more than once", v)
		seen[v] = true
	}
	assert.Len(t, seen, total)
}
