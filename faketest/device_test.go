package faketest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/proactor/faketest"
	"github.com/kestrelnet/proactor/uring"
)

func TestDeviceResolvesSubmissionsOnWait(t *testing.T) {
	d := faketest.NewDevice()
	require.True(t, d.Submit(uring.Submission{UserData: 1}))

	out := make([]uring.Completion, 4)
	n, err := d.Wait(time.Time{}, out)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, uint64(1), out[0].UserData)
}

func TestDeviceCustomResolve(t *testing.T) {
	d := faketest.NewDevice()
	d.Resolve = func(s uring.Submission) uring.Completion {
		return uring.Completion{UserData: s.UserData, Result: -1}
	}
	d.Submit(uring.Submission{UserData: 2})

	out := make([]uring.Completion, 1)
	n, _ := d.Wait(time.Time{}, out)
	require.Equal(t, 1, n)
	assert.Equal(t, int32(-1), out[0].Result)
}

func TestDeviceInjectCompletion(t *testing.T) {
	d := faketest.NewDevice()
	d.InjectCompletion(uring.Completion{UserData: 99})

	out := make([]uring.Completion, 1)
	n, _ := d.Wait(time.Time{}, out)
	require.Equal(t, 1, n)
	assert.Equal(t, uint64(99), out[0].UserData)
}
