package datagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampCorrelatorMatchesSendAndCompletion(t *testing.T) {
	c := newTimestampCorrelator()
	start := time.Unix(0, 0)
	seq := c.BeginSend(start)

	_, ok := c.Latency(seq)
	require.False(t, ok, "latency should be unavailable before CompleteSend")

	c.CompleteSend(seq, start.Add(5*time.Millisecond))
	latency, ok := c.Latency(seq)
	require.True(t, ok)
	assert.Equal(t, 5*time.Millisecond, latency)

	_, ok = c.Latency(seq)
	assert.False(t, ok, "Latency should consume the pair once read")
}

func TestTimestampCorrelatorForgetDropsPending(t *testing.T) {
	c := newTimestampCorrelator()
	seq := c.BeginSend(time.Now())
	c.Forget(seq)
	c.CompleteSend(seq, time.Now())
	_, ok := c.Latency(seq)
	assert.False(t, ok, "a forgotten sequence must not resurface as a latency sample")
}

func TestTimestampCorrelatorSequencesAreMonotonic(t *testing.T) {
	c := newTimestampCorrelator()
	a := c.BeginSend(time.Now())
	b := c.BeginSend(time.Now())
	assert.Less(t, a, b)
}
