package uring_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/proactor/uring"
)

func newTestSQ(capacity uint32) (*uring.SubmissionQueue, *atomic.Uint32, *atomic.Uint32) {
	var head, tail atomic.Uint32
	entries := make([]uring.SQE, capacity)
	array := make([]uint32, capacity)
	return uring.NewSubmissionQueue(&head, &tail, capacity-1, entries, array), &head, &tail
}

func TestSubmissionQueuePushAndFlush(t *testing.T) {
	sq, _, tail := newTestSQ(4)
	require.Equal(t, 4, sq.Room())

	ok := sq.Push(uring.Submission{Opcode: uring.OpNop, UserData: 1})
	require.True(t, ok)
	assert.Equal(t, 3, sq.Room())
	assert.Equal(t, 1, sq.Pending())

	n := sq.Flush()
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, uint32(1), tail.Load())
	assert.Equal(t, 0, sq.Pending())
}

func TestSubmissionQueueFullReturnsFalse(t *testing.T) {
	sq, head, _ := newTestSQ(2)
	require.True(t, sq.Push(uring.Submission{Opcode: uring.OpNop}))
	require.True(t, sq.Push(uring.Submission{Opcode: uring.OpNop}))
	assert.False(t, sq.Push(uring.Submission{Opcode: uring.OpNop}))

	sq.Flush()
	head.Store(1)
	assert.Equal(t, 1, sq.Room())
}
