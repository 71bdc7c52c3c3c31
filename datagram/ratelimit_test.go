package datagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsWithinBurst(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	b := newTokenBucket(100, 50, clock)

	require.True(t, b.Allow(50), "expected initial burst to be allowed")
	assert.False(t, b.Allow(1), "expected bucket to be empty after spending the full burst")
}

func TestTokenBucketReplenishesOverTime(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	b := newTokenBucket(100, 50, clock)
	b.Allow(50)

	now = now.Add(200 * time.Millisecond)
	assert.True(t, b.Allow(20), "expected 20 bytes of budget to have replenished after 200ms at 100B/s")
}

func TestTokenBucketDisabledWhenRateZero(t *testing.T) {
	b := newTokenBucket(0, 0, nil)
	assert.True(t, b.Allow(1<<20), "a zero rate should disable limiting entirely")
}

func TestTokenBucketRelieveAfterReportsWait(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	b := newTokenBucket(100, 10, clock)
	b.Allow(10)

	assert.Equal(t, 500*time.Millisecond, b.RelieveAfter(50))
}
