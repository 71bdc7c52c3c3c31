package datagram

import "github.com/kestrelnet/proactor/socket"

type shutdownPhase uint8

const (
	phaseOpen shutdownPhase = iota
	phaseShuttingDown
	phaseShutdown
)

// ShutdownMode selects how ShutdownDirection treats work already queued on
// that direction.
type ShutdownMode uint8

const (
	// ShutdownNow half-closes immediately: pending receives are canceled
	// with EOF, and the OS half-close happens without waiting for anything
	// to drain.
	ShutdownNow ShutdownMode = iota
	// ShutdownAfterDrain defers the send-direction half-close until every
	// byte already queued ahead of it has gone out, via a send-queue
	// sentinel (spec.md §4.4). Equivalent to ShutdownNow for the receive
	// direction.
	ShutdownAfterDrain
)

// ShutdownDirection moves direction's half of the socket from Open through
// ShuttingDown to Shutdown (spec.md §4.4/§6 shutdown(direction, mode)).
// Calling it again on a direction already shutting down or shut down is a
// no-op.
func (s *Socket) ShutdownDirection(direction socket.Direction, mode ShutdownMode) {
	s.shutdownMu.Lock()
	if s.shutdownPhase[direction] != phaseOpen {
		s.shutdownMu.Unlock()
		return
	}
	s.shutdownPhase[direction] = phaseShuttingDown
	s.shutdownMu.Unlock()

	switch direction {
	case socket.DirectionSend:
		s.shutdownSend(mode)
	case socket.DirectionReceive:
		s.shutdownReceive()
	}
}

func (s *Socket) shutdownSend(mode ShutdownMode) {
	finish := func() {
		if err := s.p.ShutdownSocket(s.ctx, socket.DirectionSend); err != nil {
			s.log.Printf("datagram: shutdown(write) on fd %d failed: %v", s.ctx.FD, err)
		}
		s.markShutdown(socket.DirectionSend)
	}

	if mode == ShutdownAfterDrain && s.sendQ.Len() > 0 {
		s.sendQ.EnqueueSentinel(finish)
		s.pumpSend()
		return
	}
	finish()
}

func (s *Socket) shutdownReceive() {
	s.recvQ.CancelAll(errReceiveShutdown)
	s.emit(EventLowWatermark, socket.DirectionReceive)

	if err := s.p.ShutdownSocket(s.ctx, socket.DirectionReceive); err != nil {
		s.log.Printf("datagram: shutdown(read) on fd %d failed: %v", s.ctx.FD, err)
	}
	s.markShutdown(socket.DirectionReceive)
}

func (s *Socket) markShutdown(direction socket.Direction) {
	s.shutdownMu.Lock()
	s.shutdownPhase[direction] = phaseShutdown
	ready := s.shutdownPhase[socket.DirectionSend] == phaseShutdown &&
		s.shutdownPhase[socket.DirectionReceive] == phaseShutdown
	already := s.detachStarted
	if ready {
		s.detachStarted = true
	}
	goal, cb := s.detachGoal, s.onDetach
	s.shutdownMu.Unlock()

	if !ready || already {
		return
	}
	s.p.DetachSocket(s.ctx, goal, cb)
}

// end drives both directions through shutdown and blocks until the
// underlying fd has been detached from the proactor, closing or exporting
// it per goal. Runs at most once per Socket.
func (s *Socket) end(goal socket.DetachGoal) (int32, error) {
	s.endOnce.Do(func() {
		done := make(chan struct{})
		s.shutdownMu.Lock()
		s.detachGoal = goal
		s.onDetach = func(fd int32, err error) {
			s.endFD, s.endErr = fd, err
			close(done)
		}
		s.shutdownMu.Unlock()

		s.ShutdownDirection(socket.DirectionSend, ShutdownAfterDrain)
		s.ShutdownDirection(socket.DirectionReceive, ShutdownNow)
		<-done
	})
	return s.endFD, s.endErr
}
