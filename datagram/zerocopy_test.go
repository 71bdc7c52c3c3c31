package datagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroCopyLedgerThresholdNever(t *testing.T) {
	z := newZeroCopyLedger(ZeroCopyNever)
	assert.False(t, z.ShouldUse(1<<20), "ZeroCopyNever must never engage zero-copy")
}

func TestZeroCopyLedgerThresholdDefault(t *testing.T) {
	z := newZeroCopyLedger(ZeroCopyDefault)
	assert.False(t, z.ShouldUse(defaultZeroCopyThreshold-1))
	assert.True(t, z.ShouldUse(defaultZeroCopyThreshold))
}

func TestZeroCopyLedgerExplicitThreshold(t *testing.T) {
	z := newZeroCopyLedger(1024)
	assert.False(t, z.ShouldUse(1023))
	assert.True(t, z.ShouldUse(1024))
}

func TestZeroCopyLedgerNotificationLifecycle(t *testing.T) {
	z := newZeroCopyLedger(ZeroCopyDefault)
	z.beginNotify()
	z.beginNotify()
	assert.Equal(t, int64(2), z.Stats().InFlight)
	z.endNotify()
	assert.Equal(t, int64(1), z.Stats().InFlight)
}

func TestZeroCopyLedgerMarkAvoidedDisablesFurtherUse(t *testing.T) {
	z := newZeroCopyLedger(1024)
	assert.True(t, z.ShouldUse(2048), "above threshold must engage before any Avoided report")

	z.MarkAvoided()
	assert.Equal(t, int64(1), z.Stats().Avoided)
	assert.False(t, z.ShouldUse(2048), "a kernel-reported Avoided notification must permanently disable zero-copy")

	z.MarkAvoided()
	assert.Equal(t, int64(2), z.Stats().Avoided, "a second report still counts even though engagement is already disabled")
}
