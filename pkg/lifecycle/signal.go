package lifecycle

import "sync"

// Signal is a single-fire "stop requested" event that any number of goroutines can observe.
// The zero value is not usable; create one with NewSignal.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal returns a Signal in the pending state.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire moves the Signal to the fired state. It is safe to call concurrently and repeatedly;
// only the call that performed the transition returns true.
func (s *Signal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})
	return fired
}

// Wait blocks until the Signal has fired.
func (s *Signal) Wait() {
	<-s.done
}

// Done returns a channel that is closed once the Signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether the Signal has fired, without blocking.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
