package internal

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle of a session's shutdown. It only moves forward.
type State int32

const (
	StateRunning State = iota
	StateShutdownRequested
	StateCancelling
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShutdownRequested:
		return "shutdown-requested"
	case StateCancelling:
		return "cancelling"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reason names who asked a session to shut down.
type Reason int32

const (
	ReasonNone Reason = iota
	// ReasonInterrupt is an external stop: process signal or server Stop.
	ReasonInterrupt
	// ReasonPeer is the command reader hitting EOF or a read error.
	ReasonPeer
	// ReasonWrite is a failed handshake or sample write.
	ReasonWrite
	// ReasonDevice is a configuration call rejected by the device.
	ReasonDevice
	// ReasonStreamEnded is the device's read loop returning on its own.
	ReasonStreamEnded
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonInterrupt:
		return "interrupt"
	case ReasonPeer:
		return "peer"
	case ReasonWrite:
		return "write"
	case ReasonDevice:
		return "device"
	case ReasonStreamEnded:
		return "stream-ended"
	default:
		return "unknown"
	}
}

// Shutdown is a single-slot, at-most-once shutdown signal shared by the
// command dispatcher, the streaming forwarder and the interrupt path.
type Shutdown struct {
	state  atomic.Int32
	reason atomic.Int32

	requested chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
}

func NewShutdown() *Shutdown {
	return &Shutdown{
		requested: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Trigger requests shutdown. Only the first call has an effect and reports
// true; it never blocks and is safe to call from a device callback.
func (s *Shutdown) Trigger(reason Reason) bool {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateShutdownRequested)) {
		return false
	}

	s.reason.Store(int32(reason))
	close(s.requested)

	return true
}

// Requested reports whether shutdown was triggered.
func (s *Shutdown) Requested() bool {
	return s.State() != StateRunning
}

// Notify is closed when shutdown is triggered.
func (s *Shutdown) Notify() <-chan struct{} {
	return s.requested
}

// Done is closed when the session reached StateTerminated.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

func (s *Shutdown) State() State {
	return State(s.state.Load())
}

func (s *Shutdown) Reason() Reason {
	return Reason(s.reason.Load())
}

func (s *Shutdown) cancelling() bool {
	return s.state.CompareAndSwap(int32(StateShutdownRequested), int32(StateCancelling))
}

func (s *Shutdown) terminate() {
	s.doneOnce.Do(func() {
		s.state.Store(int32(StateTerminated))
		close(s.done)
	})
}
