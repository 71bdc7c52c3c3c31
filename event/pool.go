package event

import (
	"sync/atomic"

	"github.com/kestrelnet/proactor/internal/concurrency"
	"github.com/kestrelnet/proactor/pool"
)

// Pool recycles Events through a lock-free MPMC free list, falling back to
// sync.Pool allocation when the free list is empty or full — the same
// two-tier shape as pool.SyncPool, specialized so the hot path never boxes
// an Event into an interface. The free list must be MPMC, not SPSC: Get is
// called from every caller goroutine that invokes Proactor.Submit/Cancel,
// while Put runs from the single proactor goroutine during recycle.
type Pool struct {
	free    *concurrency.Queue[*Event]
	backing *pool.SyncPool[*Event]
	nextID  atomic.Uint64
}

// NewPool creates a pool whose free list holds up to capacity Events
// (rounded up to a power of two).
func NewPool(capacity uint64) *Pool {
	return &Pool{
		free:    concurrency.NewQueue[*Event](int(capacity)),
		backing: pool.NewSyncPool(func() *Event { return &Event{} }),
	}
}

// Get returns a zeroed Event with a fresh ID.
func (p *Pool) Get() *Event {
	var e *Event
	if cached, ok := p.free.Dequeue(); ok {
		e = cached
	} else {
		e = p.backing.Get()
	}
	e.Reset()
	e.ID = p.nextID.Add(1)
	e.pooled = true
	return e
}

// Put returns e to the pool. Events not obtained from Get are ignored.
func (p *Pool) Put(e *Event) {
	if e == nil || !e.pooled {
		return
	}
	if !p.free.Enqueue(e) {
		p.backing.Put(e)
	}
}
