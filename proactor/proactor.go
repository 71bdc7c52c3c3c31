package proactor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/kestrelnet/proactor/api"
	"github.com/kestrelnet/proactor/control"
	"github.com/kestrelnet/proactor/device"
	"github.com/kestrelnet/proactor/event"
	"github.com/kestrelnet/proactor/socket"
	"github.com/kestrelnet/proactor/uring"
)

// maxDeferredPerCycle bounds how many deferred functors the waiter loop
// drains per iteration (spec.md §4.3 step 3's cycle-limited drain), so a
// burst of submissions from caller goroutines can never starve completion
// dispatch.
const maxDeferredPerCycle = 256

// Proactor is the single-issuer event loop (C8). Callers submit work from
// any goroutine; only the goroutine running Run ever touches the ring.
type Proactor struct {
	device device.Device
	pool   *event.Pool
	clock  api.Scheduler
	ctrl   *control.Runtime
	log    *log.Logger

	eventsMu sync.Mutex
	events   map[uint64]*event.Event

	socketsMu sync.Mutex
	sockets   map[int32]*socket.SocketContext

	deferredMu sync.Mutex
	deferred   *queue.Queue

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures a Proactor at construction time.
type Option func(*Proactor)

// WithLogger overrides the default log.Default().
func WithLogger(l *log.Logger) Option { return func(p *Proactor) { p.log = l } }

// WithControl attaches a control.Runtime for metrics/config/debug.
func WithControl(c *control.Runtime) Option { return func(p *Proactor) { p.ctrl = c } }

// New wires a Proactor around an already-open device and clock.
func New(d device.Device, clock api.Scheduler, opts ...Option) *Proactor {
	p := &Proactor{
		device:   d,
		pool:     event.NewPool(1024),
		clock:    clock,
		log:      log.Default(),
		events:   make(map[uint64]*event.Event),
		sockets:  make(map[int32]*socket.SocketContext),
		deferred: queue.New(),
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Clock returns the scheduler the proactor was constructed with, so
// attached components (datagram.Socket's deadline timers) can schedule
// against the same clock the waiter loop uses for NextDeadline.
func (p *Proactor) Clock() api.Scheduler { return p.clock }

type deferredFn func(p *Proactor)

// Submit registers cb against a fresh Event, stamps s.UserData with the
// event's ID, and schedules the submission to run on the waiter goroutine.
// Safe to call from any goroutine. The caller is responsible for its own
// SocketContext.BeginOp/EndOp bookkeeping around the call and within cb, as
// the Accept/Connect/Send/Receive helpers do.
func (p *Proactor) Submit(kind event.Kind, s uring.Submission, cb func(uring.Completion)) *event.Event {
	e := p.pool.Get()
	e.Kind = kind
	e.SocketFD = s.FD
	e.Callback = cb
	s.UserData = e.ID

	p.eventsMu.Lock()
	p.events[e.ID] = e
	p.eventsMu.Unlock()

	p.enqueueDeferred(func(p *Proactor) {
		e.Status = event.StatusSubmitted
		if !p.device.Submit(s) {
			p.failEvent(e, api.NewError(api.ErrCodeWouldBlock, "submission queue full"))
		}
	})
	return e
}

// Cancel requests cancellation of a previously submitted, still-pending
// event. Per spec.md §3/§4.2, the cancel SQE itself carries user-data zero
// and is never registered as an Event: its own completion is fire-and-forget
// and dispatch() drops it rather than chasing a lookup that was never meant
// to succeed.
func (p *Proactor) Cancel(e *event.Event) {
	p.enqueueDeferred(func(p *Proactor) {
		p.device.Submit(device.PrepareAsyncCancel(e.ID))
	})
}

func (p *Proactor) enqueueDeferred(fn deferredFn) {
	p.deferredMu.Lock()
	p.deferred.Add(fn)
	p.deferredMu.Unlock()
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *Proactor) failEvent(e *event.Event, err error) {
	e.Status = event.StatusCompleted
	if e.Callback != nil {
		e.Callback(uring.Completion{UserData: e.ID, Result: -1})
	}
	p.recycle(e)
	if p.ctrl != nil {
		p.ctrl.Metrics.Add("submission_errors", 1)
	}
	p.log.Printf("proactor: submission failed: %v", err)
}

func (p *Proactor) recycle(e *event.Event) {
	p.eventsMu.Lock()
	delete(p.events, e.ID)
	p.eventsMu.Unlock()
	p.pool.Put(e)
}

// Run drains deferred submissions and dispatches completions until ctx is
// canceled or Shutdown is called. It must run on a single goroutine for the
// life of the Proactor.
func (p *Proactor) Run(ctx context.Context) error {
	defer close(p.doneCh)
	buf := make([]uring.Completion, 128)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		default:
		}

		p.drainDeferred()

		deadline := p.nextDeadline()
		n, err := p.device.Wait(deadline, buf)
		if err != nil {
			p.log.Printf("proactor: wait error: %v", err)
			return err
		}

		for i := 0; i < n; i++ {
			p.dispatch(buf[i])
		}

		select {
		case <-p.wakeCh:
		default:
		}
	}
}

func (p *Proactor) nextDeadline() time.Time {
	if d, ok := p.clock.NextDeadline(); ok {
		return d
	}
	return time.Now().Add(time.Second)
}

func (p *Proactor) drainDeferred() {
	for i := 0; i < maxDeferredPerCycle; i++ {
		p.deferredMu.Lock()
		if p.deferred.Length() == 0 {
			p.deferredMu.Unlock()
			break
		}
		fn := p.deferred.Remove().(deferredFn)
		p.deferredMu.Unlock()
		fn(p)
	}
	if _, err := p.device.Flush(); err != nil {
		p.log.Printf("proactor: flush error: %v", err)
	}
}

func (p *Proactor) dispatch(c uring.Completion) {
	if c.UserData == 0 {
		// Cancel submissions (and NOPs) carry user-data zero by
		// convention (spec.md §3) and were never registered as an Event;
		// their completions are acknowledged implicitly, not dispatched.
		return
	}

	p.eventsMu.Lock()
	e, ok := p.events[c.UserData]
	p.eventsMu.Unlock()
	if !ok {
		p.log.Printf("proactor: completion for unknown event %d", c.UserData)
		return
	}

	e.Status = event.StatusCompleted
	if e.Callback != nil {
		e.Callback(c)
	}
	if p.ctrl != nil {
		p.ctrl.Metrics.Add("completions_dispatched", 1)
	}

	if !c.HasMore() {
		p.recycle(e)
	}
}

// Shutdown stops Run and blocks until it returns.
func (p *Proactor) Shutdown() error {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	<-p.doneCh
	return p.device.Close()
}

var _ api.GracefulShutdown = (*Proactor)(nil)
