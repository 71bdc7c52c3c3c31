package faketest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelnet/proactor/faketest"
)

func TestSchedulerAdvanceFiresDueTimers(t *testing.T) {
	s := faketest.NewScheduler(time.Unix(0, 0))
	fired := false
	s.AfterFunc(time.Second, func() { fired = true })

	s.Advance(500 * time.Millisecond)
	assert.False(t, fired)

	s.Advance(600 * time.Millisecond)
	assert.True(t, fired)
}

func TestSchedulerCancelPreventsAdvanceFire(t *testing.T) {
	s := faketest.NewScheduler(time.Unix(0, 0))
	fired := false
	c := s.AfterFunc(time.Second, func() { fired = true })
	c.Cancel()

	s.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestSchedulerNextDeadlinePicksEarliest(t *testing.T) {
	s := faketest.NewScheduler(time.Unix(0, 0))
	s.AfterFunc(time.Hour, func() {})
	s.AfterFunc(time.Minute, func() {})

	d, ok := s.NextDeadline()
	assert.True(t, ok)
	assert.Equal(t, s.Now().Add(time.Minute), d)
}
