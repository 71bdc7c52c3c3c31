package datagram

import (
	"sync"
	"time"
)

// tokenBucket implements a byte-rate limiter for outbound sends: each
// Allow(n) call spends n bytes of budget, replenished continuously at
// ratePerSec up to burst.
type tokenBucket struct {
	mu         sync.Mutex
	ratePerSec float64
	burst      float64
	tokens     float64
	last       time.Time
	now        func() time.Time
}

func newTokenBucket(ratePerSec, burst int64, now func() time.Time) *tokenBucket {
	if now == nil {
		now = time.Now
	}
	return &tokenBucket{
		ratePerSec: float64(ratePerSec),
		burst:      float64(burst),
		tokens:     float64(burst),
		last:       now(),
		now:        now,
	}
}

// Allow reports whether n bytes may be sent now, spending the budget if so.
// A disabled bucket (rate == 0) always allows.
func (b *tokenBucket) Allow(n int) bool {
	if b.ratePerSec <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.ratePerSec
	if b.tokens > b.burst {
		b.tokens = b.burst
	}

	if b.tokens < float64(n) {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// RelieveAfter reports the duration until n bytes of budget will be
// available, used to schedule a chronology timer that retries a
// rate-limited send instead of busy-polling Allow.
func (b *tokenBucket) RelieveAfter(n int) time.Duration {
	if b.ratePerSec <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	deficit := float64(n) - b.tokens
	if deficit <= 0 {
		return 0
	}
	seconds := deficit / b.ratePerSec
	return time.Duration(seconds * float64(time.Second))
}
