package uring_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/proactor/uring"
)

func TestCompletionQueuePopInOrder(t *testing.T) {
	var head, tail, overflow atomic.Uint32
	entries := make([]uring.CQE, 4)
	entries[0] = uring.CQE{UserData: 10, Res: 5}
	entries[1] = uring.CQE{UserData: 11, Res: -1, Flags: uring.CqeFMore}
	tail.Store(2)

	cq := uring.NewCompletionQueue(&head, &tail, &overflow, 3, entries)
	require.Equal(t, 2, cq.Ready())

	c1, ok := cq.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(10), c1.UserData)
	assert.Equal(t, int32(5), c1.Result)

	c2, ok := cq.Pop()
	require.True(t, ok)
	assert.True(t, c2.HasMore())

	_, ok = cq.Pop()
	assert.False(t, ok)
}

func TestCompletionQueueOverflow(t *testing.T) {
	var head, tail, overflow atomic.Uint32
	overflow.Store(3)
	cq := uring.NewCompletionQueue(&head, &tail, &overflow, 7, make([]uring.CQE, 8))
	assert.Equal(t, uint32(3), cq.Overflow())
}
