package datagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowControlReadApplyRelax(t *testing.T) {
	var f flowControl
	assert.False(t, f.ReadBlocked())
	f.ApplyRead()
	assert.True(t, f.ReadBlocked())
	f.RelaxRead()
	assert.False(t, f.ReadBlocked())
}

func TestFlowControlWriteApplyRelax(t *testing.T) {
	var f flowControl
	assert.False(t, f.WriteBlocked())
	f.ApplyWrite()
	assert.True(t, f.WriteBlocked())
	f.RelaxWrite()
	assert.False(t, f.WriteBlocked())
}
