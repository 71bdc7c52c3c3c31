package api

import "time"

// Scheduler is the "chronology" narrow contract spec.md §1 lists as an
// external collaborator: core never runs its own timer thread, it only
// asks a Scheduler for the earliest pending deadline and to fire callbacks.
// chronology.Wheel is the module's own implementation; tests may substitute
// a fake.
type Scheduler interface {
	// Now returns the current monotonic time.
	Now() time.Time

	// AfterFunc schedules fn to run once after d elapses and returns a
	// handle that can cancel it before it fires.
	AfterFunc(d time.Duration, fn func()) Cancelable

	// NextDeadline returns the earliest pending deadline and whether any
	// timer is currently armed. RingDevice.wait (spec.md §4.1) uses this to
	// compute its enter() bound.
	NextDeadline() (time.Time, bool)
}

// Cancelable is a handle to a scheduled, possibly already-fired, timer.
type Cancelable interface {
	// Cancel aborts the timer if it has not yet fired. Returns false if it
	// already fired or was already cancelled.
	Cancel() bool
}

// Result wraps a value or error for composable callback-based APIs such as
// the proactor's completion dispatch.
type Result[T any] struct {
	Value T
	Err   error
}
