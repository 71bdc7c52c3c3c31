package event

import "github.com/kestrelnet/proactor/uring"

// Kind identifies what an Event represents.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAccept
	KindConnect
	KindSend
	KindReceive
	KindTimeout
	KindCancel
	KindClose
)

// Status tracks an Event's lifecycle.
type Status uint8

const (
	StatusPending Status = iota
	StatusSubmitted
	StatusCompleted
	StatusCancelled
)

// Event correlates a uring.Submission's UserData with the callback that
// should run when its Completion arrives. One is allocated per in-flight
// operation and recycled through an EventPool once its completion is
// dispatched.
type Event struct {
	ID       uint64
	Kind     Kind
	Status   Status
	SocketFD int32
	Callback func(uring.Completion)

	// Token is the caller-supplied cancellation token (spec.md §6; datagram
	// defines SendToken and ReceiveToken), opaque to this package.
	Token uint64

	pooled bool
}

// Reset clears an Event for reuse by EventPool.
func (e *Event) Reset() {
	*e = Event{}
}
