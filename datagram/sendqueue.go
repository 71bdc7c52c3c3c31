package datagram

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/event"
)

// SendToken identifies one queued or in-flight send for Socket.Cancel
// (spec.md §6's per-operation cancellation).
type SendToken uint64

type sendEntry struct {
	token    SendToken
	data     []byte
	deadline time.Time
	callback func(n int, err error)
	canceled atomic.Bool
	finished atomic.Bool

	timer api.Cancelable
	ev    atomic.Pointer[event.Event]

	// sentinel is set on entries pushed by EnqueueSentinel: a marker the
	// send pump runs once every real send ahead of it has drained, used to
	// defer a half-close until the send queue is empty (spec.md §4.4's
	// shutdown(write) semantics). Sentinels bypass rate-limit, deadline and
	// cancellation handling entirely.
	sentinel func()
}

func (e *sendEntry) isSentinel() bool { return e.sentinel != nil }

// finish runs cb exactly once no matter how many of completion, deadline
// expiry, and cancellation race to report it.
func (e *sendEntry) finish(n int, err error) {
	if !e.finished.CompareAndSwap(false, true) {
		return
	}
	if e.timer != nil {
		e.timer.Cancel()
	}
	if e.callback != nil {
		e.callback(n, err)
	}
}

func (e *sendEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// sendQueue is the FIFO of pending sends, gated by a byte-depth watermark so
// Socket can apply back-pressure before the kernel ever sees an overload.
type sendQueue struct {
	mu        sync.Mutex
	entries   map[SendToken]*sendEntry
	order     []*sendEntry
	nextTok   atomic.Uint64
	watermark *watermarkGate
}

func newSendQueue(high, low int) *sendQueue {
	return &sendQueue{
		entries:   make(map[SendToken]*sendEntry),
		watermark: newWatermarkGate(high, low),
	}
}

// Enqueue adds an entry and reports the watermark crossing caused by this
// call (see watermarkGate.Add): 1 if the queue just crossed its high
// watermark, -1 if it just dropped to its low watermark (impossible on an
// add, kept for symmetry with Remove), 0 otherwise.
func (q *sendQueue) Enqueue(data []byte, deadline time.Time, cb func(int, error)) (*sendEntry, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := &sendEntry{
		token:    SendToken(q.nextTok.Add(1)),
		data:     data,
		deadline: deadline,
		callback: cb,
	}
	q.entries[e.token] = e
	q.order = append(q.order, e)
	crossing := q.watermark.Add(len(data))
	return e, crossing
}

// EnqueueSentinel appends a marker entry that runs fn once it reaches the
// front of the queue and every send ahead of it has been removed, without
// itself touching the byte watermark.
func (q *sendQueue) EnqueueSentinel(fn func()) *sendEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := &sendEntry{token: SendToken(q.nextTok.Add(1)), sentinel: fn}
	q.entries[e.token] = e
	q.order = append(q.order, e)
	return e
}

// Peek returns the oldest entry without removing it, so the pump can inspect
// it (rate limit, deadline, cancellation) before committing to a submission.
func (q *sendQueue) Peek() (*sendEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return nil, false
	}
	return q.order[0], true
}

// Remove drops token's entry from the queue (wherever it sits, though the
// pump only ever removes the front) and reports the watermark crossing
// caused by its removal.
func (q *sendQueue) Remove(token SendToken) (crossing int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[token]
	if !ok {
		return 0, false
	}
	delete(q.entries, token)
	for i, o := range q.order {
		if o.token == token {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	if e.isSentinel() {
		return 0, true
	}
	return q.watermark.Add(-len(e.data)), true
}

// Cancel marks token's entry canceled. Returns errUnknownToken if no such
// entry is queued (it may have already been popped for submission).
func (q *sendQueue) Cancel(token SendToken) error {
	q.mu.Lock()
	e, ok := q.entries[token]
	q.mu.Unlock()
	if !ok {
		return errUnknownToken
	}
	e.canceled.Store(true)
	return nil
}

// Len reports the number of entries currently queued.
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
