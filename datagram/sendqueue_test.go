package datagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendQueuePeekPreservesFIFOOrder(t *testing.T) {
	q := newSendQueue(10, 2)
	a, _ := q.Enqueue([]byte("a"), time.Time{}, nil)
	b, _ := q.Enqueue([]byte("b"), time.Time{}, nil)

	first, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", string(first.data))

	_, ok = q.Remove(a.token)
	require.True(t, ok)

	second, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", string(second.data))

	_, ok = q.Remove(b.token)
	require.True(t, ok)

	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestSendQueueReportsHighWatermarkCrossingByBytes(t *testing.T) {
	q := newSendQueue(4, 1)
	_, crossing := q.Enqueue([]byte("ab"), time.Time{}, nil)
	assert.Equal(t, 0, crossing, "should not cross high watermark at depth 2 of 4")

	e, crossing := q.Enqueue([]byte("cd"), time.Time{}, nil)
	assert.Equal(t, 1, crossing, "expected high watermark crossing at depth 4")

	crossing, ok := q.Remove(e.token)
	require.True(t, ok)
	assert.Equal(t, 0, crossing, "depth 2 is still above the low watermark of 1")
}

func TestSendQueueRemoveReportsLowWatermarkCrossing(t *testing.T) {
	q := newSendQueue(4, 2)
	a, _ := q.Enqueue([]byte("ab"), time.Time{}, nil)
	b, _ := q.Enqueue([]byte("cd"), time.Time{}, nil)

	crossing, ok := q.Remove(a.token)
	require.True(t, ok)
	assert.Equal(t, -1, crossing, "expected low watermark crossing at depth 2, which reaches the low watermark of 2")

	crossing, ok = q.Remove(b.token)
	require.True(t, ok)
	assert.Equal(t, 0, crossing, "the low crossing was already reported at depth 2")
}

func TestSendQueueCancelSkipsEntryOnPeek(t *testing.T) {
	q := newSendQueue(10, 2)
	e, _ := q.Enqueue([]byte("a"), time.Time{}, nil)
	q.Enqueue([]byte("b"), time.Time{}, nil)

	require.NoError(t, q.Cancel(e.token))
	peeked, ok := q.Peek()
	require.True(t, ok)
	assert.True(t, peeked.canceled.Load())
}

func TestSendQueueCancelUnknownTokenErrors(t *testing.T) {
	q := newSendQueue(10, 2)
	assert.ErrorIs(t, q.Cancel(SendToken(999)), errUnknownToken)
}

func TestSendQueueEnqueueSentinelBypassesWatermark(t *testing.T) {
	q := newSendQueue(4, 2)
	var ran bool
	e := q.EnqueueSentinel(func() { ran = true })

	peeked, ok := q.Peek()
	require.True(t, ok)
	assert.True(t, peeked.isSentinel())

	crossing, ok := q.Remove(e.token)
	require.True(t, ok)
	assert.Equal(t, 0, crossing)

	e.sentinel()
	assert.True(t, ran)
}

func TestSendEntryExpired(t *testing.T) {
	e := &sendEntry{deadline: time.Unix(100, 0)}
	assert.False(t, e.expired(time.Unix(50, 0)))
	assert.True(t, e.expired(time.Unix(150, 0)))
}

func TestSendEntryFinishRunsCallbackOnce(t *testing.T) {
	var calls int
	e := &sendEntry{callback: func(int, error) { calls++ }}
	e.finish(3, nil)
	e.finish(3, nil)
	assert.Equal(t, 1, calls)
}
