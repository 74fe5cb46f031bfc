package lifecycle

import (
	"context"
	"time"
)

// State is a step of the coordinator's shutdown protocol.
type State int32

const (
	// Idle is the state before Run is called.
	Idle State = iota
	// Running means the listener accepts connections.
	Running
	// Draining means no new connections are accepted while in-flight requests finish.
	Draining
	// Stopped means the listener is closed and Run has returned (or is about to).
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source identifies the wake source that started the drain.
type Source string

const (
	SourceNone          Source = ""
	SourceInterrupt     Source = "interrupt"
	SourceExternal      Source = "external"
	SourceTrigger       Source = "trigger"
	SourceListenerError Source = "listener_error"
)

// Transition describes one state change of the coordinator.
type Transition struct {
	From   State
	To     State
	Source Source
	At     time.Time
	// Elapsed is the time spent draining. Only set on the transition to Stopped.
	Elapsed time.Duration
}

// Observer is notified of every state transition, synchronously and in order.
// Implementations must not block for long: they run on the coordinator's goroutine.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, t Transition)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}
