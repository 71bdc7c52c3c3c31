package datagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkGateCrossesHighOnlyOnce(t *testing.T) {
	g := newWatermarkGate(4, 1)
	for i := 0; i < 3; i++ {
		require.Equal(t, 0, g.Add(1), "crossed high watermark early at depth %d", i+1)
	}
	assert.Equal(t, 1, g.Add(1), "expected high watermark crossing at depth 4")
	assert.Equal(t, 0, g.Add(1), "should not re-cross high watermark while already above it")
	assert.True(t, g.Blocked())
}

func TestWatermarkGateRelievesAtLow(t *testing.T) {
	g := newWatermarkGate(4, 1)
	for i := 0; i < 4; i++ {
		g.Add(1)
	}
	require.True(t, g.Blocked())

	assert.Equal(t, 0, g.Add(-1))
	assert.Equal(t, 0, g.Add(-1))
	assert.Equal(t, int64(2), g.Depth())

	assert.Equal(t, -1, g.Add(-1), "expected low watermark crossing at depth 1")
	assert.False(t, g.Blocked(), "expected unblocked at or below low watermark")
}

func TestWatermarkGateReportsNeitherCrossingInMiddleBand(t *testing.T) {
	g := newWatermarkGate(10, 2)
	assert.Equal(t, 0, g.Add(5))
	assert.Equal(t, 0, g.Add(-1))
}
