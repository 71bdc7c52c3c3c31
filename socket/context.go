package socket

import (
	"sync"
	"sync/atomic"

	"github.com/kestrelnet/proactor/api"
)

// DetachState is the lifecycle a SocketContext moves through on the way to
// either Closed (fd released via close()) or Detached (fd handed back to
// the caller without closing, spec.md §6's release(handle)).
type DetachState uint8

const (
	StateAttached DetachState = iota
	StateDraining
	StateClosed
	StateDetached
)

// DetachGoal selects what happens to the fd once detach_socket finishes
// draining: Close releases it via the OS, Export hands it back to the
// caller untouched.
type DetachGoal uint8

const (
	DetachGoalClose DetachGoal = iota
	DetachGoalExport
)

// Direction names one half of a bidirectional socket. Used by the shutdown
// state machine (shutdown(direction, mode)) and by session event
// notifications that concern only the send or receive side.
type Direction uint8

const (
	DirectionSend Direction = iota
	DirectionReceive
)

// SocketContext is the proactor's per-socket bookkeeping: the fd, its
// in-flight operation count, and its detach/close state machine. Every
// socket kind attached to a Proactor (currently only datagram.Socket) owns
// one.
type SocketContext struct {
	FD int32

	mu      sync.Mutex
	state   DetachState
	inFlight atomic.Int32
	drained chan struct{}
}

// New creates a context for fd in the Attached state.
func New(fd int32) *SocketContext {
	return &SocketContext{FD: fd, drained: make(chan struct{})}
}

// State returns the current detach state.
func (c *SocketContext) State() DetachState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginOp records a new in-flight operation. Returns false if the context
// is already draining or past it — the caller must not submit.
func (c *SocketContext) BeginOp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAttached {
		return false
	}
	c.inFlight.Add(1)
	return true
}

// EndOp records an in-flight operation's completion. If a drain is pending
// and this was the last operation, it signals the drain to proceed.
func (c *SocketContext) EndOp() {
	if c.inFlight.Add(-1) == 0 {
		c.mu.Lock()
		draining := c.state == StateDraining
		c.mu.Unlock()
		if draining {
			c.signalDrained()
		}
	}
}

func (c *SocketContext) signalDrained() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.drained:
	default:
		close(c.drained)
	}
}

// BeginDrain transitions Attached -> Draining, refusing new operations.
// Returns a channel that closes once all in-flight operations finish.
func (c *SocketContext) BeginDrain() <-chan struct{} {
	c.mu.Lock()
	if c.state == StateAttached {
		c.state = StateDraining
	}
	empty := c.inFlight.Load() == 0
	c.mu.Unlock()
	if empty {
		c.signalDrained()
	}
	return c.drained
}

// Finish transitions Draining -> final, where final is StateClosed (fd was
// closed) or StateDetached (fd handed back without closing, spec.md §6
// release(handle)).
func (c *SocketContext) Finish(final DetachState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDraining {
		return api.NewError(api.ErrCodeInvalidArgument, "Finish called outside Draining state")
	}
	c.state = final
	return nil
}
