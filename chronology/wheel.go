// chronology/wheel.go
//
// Wheel is a heap-ordered timer queue. It runs its own goroutine that
// sleeps until the next deadline, fires every timer whose deadline has
// elapsed, and goes back to sleep — the same shape as a single-threaded
// timer wheel, without the bucket array, since the proactor's timer count
// per ring is small (deadlines and rate-limit relief, not per-packet
// timers).

package chronology

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/kestrelnet/proactor/api"
)

type timerEntry struct {
	deadline time.Time
	fn       func()
	index    int
	fired    atomic.Bool
	canceled atomic.Bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel is an api.Scheduler backed by a binary heap of pending timers.
type Wheel struct {
	mu     sync.Mutex
	heap   timerHeap
	wake   chan struct{}
	stop   chan struct{}
	stopWg sync.WaitGroup
}

var _ api.Scheduler = (*Wheel)(nil)

// NewWheel starts the background dispatch goroutine and returns a ready
// Wheel. Call Close to stop it.
func NewWheel() *Wheel {
	w := &Wheel{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	w.stopWg.Add(1)
	go w.run()
	return w
}

// Now returns the current monotonic time.
func (w *Wheel) Now() time.Time { return time.Now() }

// AfterFunc schedules fn to run once after d elapses.
func (w *Wheel) AfterFunc(d time.Duration, fn func()) api.Cancelable {
	e := &timerEntry{deadline: time.Now().Add(d), fn: fn}

	w.mu.Lock()
	heap.Push(&w.heap, e)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return e
}

// NextDeadline returns the earliest pending, non-canceled deadline.
func (w *Wheel) NextDeadline() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.heap) > 0 {
		top := w.heap[0]
		if top.canceled.Load() {
			heap.Pop(&w.heap)
			continue
		}
		return top.deadline, true
	}
	return time.Time{}, false
}

// Close stops the dispatch goroutine. Pending timers never fire.
func (w *Wheel) Close() {
	close(w.stop)
	w.stopWg.Wait()
}

func (w *Wheel) run() {
	defer w.stopWg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		w.mu.Lock()
		var wait time.Duration
		for len(w.heap) > 0 && w.heap[0].canceled.Load() {
			heap.Pop(&w.heap)
		}
		if len(w.heap) == 0 {
			wait = time.Hour
		} else {
			touchNextDue(w.heap[0])
			wait = time.Until(w.heap[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		w.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-w.stop:
			return
		case <-w.wake:
			continue
		case <-timer.C:
			w.fireDue()
		}
	}
}

func (w *Wheel) fireDue() {
	now := time.Now()
	var due []*timerEntry

	w.mu.Lock()
	for len(w.heap) > 0 && !w.heap[0].deadline.After(now) {
		e := heap.Pop(&w.heap).(*timerEntry)
		if e.canceled.Load() {
			continue
		}
		e.fired.Store(true)
		due = append(due, e)
	}
	w.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}

// Cancel aborts the timer if it has not yet fired.
func (e *timerEntry) Cancel() bool {
	if e.fired.Load() {
		return false
	}
	return e.canceled.CompareAndSwap(false, true)
}

// touchNextDue warms the cache line holding the next-due entry's deadline
// and callback pointer before run() blocks on timer.C, on CPUs where the
// wider SSE2 load path makes that worthwhile.
func touchNextDue(e *timerEntry) {
	if !cpu.X86.HasSSE2 {
		return
	}
	_ = e.deadline
	_ = e.fn
}
