package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/stop-on-call/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod bounds the drain when no grace period is configured.
const DefaultGracePeriod = 5 * time.Second

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("coordinator already started")

// HookFunc is a cleanup step run after the listener has drained.
// The context expires when the grace period elapses.
type HookFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// Coordinator supervises an http.Server and drains it exactly once, when the first wake source fires.
type Coordinator struct {
	server      *http.Server
	signal      *Signal
	gracePeriod time.Duration
	signals     []os.Signal
	observers   []Observer
	logger      *slog.Logger

	mu     sync.Mutex
	hooks  []hook
	source Source

	state   atomic.Int32
	started atomic.Bool
	done    chan struct{}
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithGracePeriod bounds how long in-flight requests and hooks may take once draining starts.
// Non-positive values keep DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.gracePeriod = d
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithSignals overrides the OS signals treated as an interrupt.
func WithSignals(signals ...os.Signal) Option {
	return func(c *Coordinator) {
		c.signals = signals
	}
}

// WithObserver registers an observer for state transitions.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observers = append(c.observers, o)
	}
}

// NewCoordinator creates a coordinator for server. sig is the internal stop trigger; the
// coordinator also fires it when another wake source wins, so observers of sig always see
// the shutdown.
func NewCoordinator(server *http.Server, sig *Signal, opts ...Option) *Coordinator {
	c := &Coordinator{
		server:      server,
		signal:      sig,
		gracePeriod: DefaultGracePeriod,
		logger:      logging.NewNop(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterHook adds a cleanup step run concurrently with the other hooks after the drain.
func (c *Coordinator) RegisterHook(name string, fn HookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook{name: name, fn: fn})
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Source returns the wake source that started the drain, or SourceNone while running.
func (c *Coordinator) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Done returns a channel that is closed once Run has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// GracePeriod returns the configured drain bound.
func (c *Coordinator) GracePeriod() time.Duration {
	return c.gracePeriod
}

// Run serves ln until a wake source fires, then drains the server and runs the hooks.
// Cancelling ctx is the external wake source. Run returns nil after a clean stop, or the
// listener's error if serving failed. It may only be called once.
func (c *Coordinator) Run(ctx context.Context, ln net.Listener) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(c.done)

	// Observers and hooks outlive the caller's context.
	octx := context.WithoutCancel(ctx)

	sm := NewSignalManager(c.signals...)
	defer sm.Stop()

	c.transition(octx, Running, SourceNone, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", ln.Addr(), err)
		}
		return nil
	})
	g.Go(func() error {
		source := c.await(ctx, gctx, sm)
		c.drain(octx, source)
		return nil
	})

	return g.Wait()
}

// await blocks until the first wake source fires.
func (c *Coordinator) await(ctx, gctx context.Context, sm *SignalManager) Source {
	select {
	case <-sm.Context().Done():
		return SourceInterrupt
	case <-c.signal.Done():
		return SourceTrigger
	case <-gctx.Done():
		if ctx.Err() != nil {
			return SourceExternal
		}
		return SourceListenerError
	}
}

func (c *Coordinator) drain(ctx context.Context, source Source) {
	c.mu.Lock()
	c.source = source
	c.mu.Unlock()

	c.signal.Fire()
	c.transition(ctx, Draining, source, 0)
	start := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.gracePeriod)
	defer cancel()

	if err := c.server.Shutdown(shutdownCtx); err != nil {
		c.logger.Warn("Drain did not complete, closing remaining connections",
			"grace_period", c.gracePeriod, "error", err)
		if err := c.server.Close(); err != nil {
			c.logger.Error("Force close failed", "error", err)
		}
	}

	c.runHooks(ctx)
	c.transition(ctx, Stopped, source, time.Since(start))
}

func (c *Coordinator) runHooks(ctx context.Context) {
	c.mu.Lock()
	hooks := make([]hook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	if len(hooks) == 0 {
		return
	}

	hookCtx, cancel := context.WithTimeout(ctx, c.gracePeriod)
	defer cancel()

	var wg sync.WaitGroup
	for _, h := range hooks {
		wg.Add(1)
		go func(h hook) {
			defer wg.Done()
			if err := h.fn(hookCtx); err != nil {
				c.logger.Warn("Shutdown hook failed", "hook", h.name, "error", err)
				return
			}
			c.logger.Debug("Shutdown hook completed", "hook", h.name)
		}(h)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-hookCtx.Done():
		c.logger.Warn("Shutdown hooks timed out", "grace_period", c.gracePeriod)
	}
}

func (c *Coordinator) transition(ctx context.Context, to State, source Source, elapsed time.Duration) {
	from := State(c.state.Swap(int32(to)))
	t := Transition{
		From:    from,
		To:      to,
		Source:  source,
		At:      time.Now(),
		Elapsed: elapsed,
	}

	attrs := []any{"from", from, "to", to}
	if source != SourceNone {
		attrs = append(attrs, "source", source)
	}
	if to == Stopped {
		attrs = append(attrs, "elapsed", elapsed)
	}
	c.logger.Info("Lifecycle transition", attrs...)

	for _, o := range c.observers {
		o.OnTransition(ctx, t)
	}
}
