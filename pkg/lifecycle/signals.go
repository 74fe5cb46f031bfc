package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// DefaultSignals are the OS signals that start a drain unless overridden.
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalManager owns the OS signal subscription used as a wake source.
type SignalManager struct {
	signals []os.Signal
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
// With no arguments it listens for DefaultSignals.
func NewSignalManager(signals ...os.Signal) *SignalManager {
	if len(signals) == 0 {
		signals = DefaultSignals
	}
	sm := &SignalManager{signals: signals}
	sm.Reset()
	return sm
}

// Context returns the current signal context.
// It is cancelled when one of the signals arrives or Stop is called.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Reset re-arms the signal listener.
func (sm *SignalManager) Reset() {
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(context.Background(), sm.signals...)
}

// Stop permanently stops the signal listener and restores default signal handling.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}
