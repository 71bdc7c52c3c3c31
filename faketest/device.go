// Package faketest provides in-memory fakes for the proactor's kernel-facing
// collaborators, grounded on the teacher's fake package (FakeReactor,
// FakeBytePool): a Device that completes submissions synchronously
// instead of talking to io_uring, letting proactor and datagram be tested
// without a live kernel.
package faketest

import (
	"sync"
	"time"

	"github.com/kestrelnet/proactor/uring"
)

// CompletionFunc lets a test script how a submitted opcode resolves.
type CompletionFunc func(uring.Submission) uring.Completion

// Device is an in-memory device.Device: every Submit is queued, and Wait
// resolves queued submissions through Resolve (defaulting to an immediate
// success completion) instead of calling into the kernel.
type Device struct {
	mu      sync.Mutex
	pending []uring.Submission
	ready   []uring.Completion
	closed  bool

	// Resolve, if set, computes each submission's completion. Defaults to
	// returning Result: 0 (success) with no flags.
	Resolve CompletionFunc

	// CancelByFD controls SupportsCancelByFD's return value, letting tests
	// exercise both the cancel-by-fd and per-event cancellation fallback
	// paths in Proactor.CancelSocket.
	CancelByFD bool
}

// NewDevice returns an empty fake device with cancel-by-fd enabled.
func NewDevice() *Device { return &Device{CancelByFD: true} }

func (d *Device) Submit(s uring.Submission) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.pending = append(d.pending, s)
	return true
}

func (d *Device) Flush() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := uint32(len(d.pending))
	for _, s := range d.pending {
		d.ready = append(d.ready, d.resolve(s))
	}
	d.pending = d.pending[:0]
	return n, nil
}

func (d *Device) resolve(s uring.Submission) uring.Completion {
	if d.Resolve != nil {
		return d.Resolve(s)
	}
	return uring.Completion{UserData: s.UserData, Result: 0}
}

func (d *Device) Wait(deadline time.Time, out []uring.Completion) (int, error) {
	d.Flush()

	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for n < len(out) && len(d.ready) > 0 {
		out[n] = d.ready[0]
		d.ready = d.ready[1:]
		n++
	}
	return n, nil
}

func (d *Device) Probe() *uring.RingProbe {
	return uring.NewRingProbeForFeatures(uring.FeatNodrop | uring.FeatSubmitStable)
}

func (d *Device) SupportsCancelByFD() bool { return d.CancelByFD }

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// InjectCompletion queues a completion not tied to any Submit call, for
// simulating out-of-band events (e.g. a cancellation racing a completion).
func (d *Device) InjectCompletion(c uring.Completion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = append(d.ready, c)
}
