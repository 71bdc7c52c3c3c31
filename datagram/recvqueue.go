package datagram

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/event"
)

// ReceiveToken identifies one queued or in-flight receive for Socket.Cancel.
type ReceiveToken uint64

type recvEntry struct {
	token    ReceiveToken
	buf      []byte
	deadline time.Time
	callback func(n int, from []byte, err error)
	canceled atomic.Bool
	finished atomic.Bool

	timer api.Cancelable
	ev    atomic.Pointer[event.Event]
}

func (e *recvEntry) finish(n int, from []byte, err error) {
	if !e.finished.CompareAndSwap(false, true) {
		return
	}
	if e.timer != nil {
		e.timer.Cancel()
	}
	if e.callback != nil {
		e.callback(n, from, err)
	}
}

// receiveQueue tracks posted-but-unsatisfied receive requests and their own
// watermark, measured in outstanding buffers rather than bytes: a socket's
// receive back-pressure is about how many datagrams are sitting unconsumed,
// not their size.
type receiveQueue struct {
	mu        sync.Mutex
	entries   map[ReceiveToken]*recvEntry
	nextTok   atomic.Uint64
	watermark *watermarkGate
}

func newReceiveQueue(high, low int) *receiveQueue {
	return &receiveQueue{
		entries:   make(map[ReceiveToken]*recvEntry),
		watermark: newWatermarkGate(high, low),
	}
}

// Add records a newly posted receive buffer and reports the watermark
// crossing caused by this call.
func (q *receiveQueue) Add(buf []byte, deadline time.Time, cb func(int, []byte, error)) (*recvEntry, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := &recvEntry{
		token:    ReceiveToken(q.nextTok.Add(1)),
		buf:      buf,
		deadline: deadline,
		callback: cb,
	}
	q.entries[e.token] = e
	crossing := q.watermark.Add(1)
	return e, crossing
}

// Remove drops token's entry once it has been satisfied, canceled, or timed
// out, reporting the watermark crossing caused by its removal.
func (q *receiveQueue) Remove(token ReceiveToken) (e *recvEntry, crossing int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok = q.entries[token]
	if !ok {
		return nil, 0, false
	}
	delete(q.entries, token)
	return e, q.watermark.Add(-1), true
}

func (q *receiveQueue) Cancel(token ReceiveToken) error {
	q.mu.Lock()
	e, ok := q.entries[token]
	q.mu.Unlock()
	if !ok {
		return errUnknownToken
	}
	e.canceled.Store(true)
	return nil
}

// CancelAll drains every entry still tracked (posted receives that never got
// a completion), finishing each with err, for receive-direction shutdown
// (spec.md §4.4: cancel pending receives with EOF). Returns the drained
// entries so the caller can cancel their in-flight ring operations too.
func (q *receiveQueue) CancelAll(err error) []*recvEntry {
	q.mu.Lock()
	drained := make([]*recvEntry, 0, len(q.entries))
	for token, e := range q.entries {
		drained = append(drained, e)
		delete(q.entries, token)
		q.watermark.Add(-1)
	}
	q.mu.Unlock()
	for _, e := range drained {
		e.finish(0, nil, err)
	}
	return drained
}
