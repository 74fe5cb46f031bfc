package stoponcall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/stop-on-call/internal/logging"
	"github.com/aretw0/stop-on-call/internal/presentation/tui"
	httpAdapter "github.com/aretw0/stop-on-call/pkg/adapters/http"
	redisAdapter "github.com/aretw0/stop-on-call/pkg/adapters/redis"
	"github.com/aretw0/stop-on-call/pkg/config"
	"github.com/aretw0/stop-on-call/pkg/lifecycle"
	"github.com/aretw0/stop-on-call/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Service is the stop-on-call HTTP service: a health endpoint, a stop endpoint and the
// coordinator that drains the listener once a stop is requested.
type Service struct {
	cfg      config.Config
	signal   *lifecycle.Signal
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	redis    backend.UniversalClient
	instance string
	signals  []os.Signal
	banner   io.Writer

	started atomic.Bool
	ready   chan struct{}

	mu          sync.Mutex
	addr        net.Addr
	metricsAddr net.Addr
	coord       *lifecycle.Coordinator
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRegistry registers the service collectors on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithRedisClient enables the Redis remote trigger and status notifier with an existing client.
// Without it, a client is created from Config.RedisURL when that is set.
func WithRedisClient(client backend.UniversalClient) Option {
	return func(s *Service) {
		s.redis = client
	}
}

// WithInstance names this process in Redis status events. Defaults to the host name.
func WithInstance(name string) Option {
	return func(s *Service) {
		s.instance = name
	}
}

// WithSignals overrides the OS signals that stop the service.
func WithSignals(signals ...os.Signal) Option {
	return func(s *Service) {
		s.signals = signals
	}
}

// WithBannerWriter redirects the startup banner (stdout by default).
func WithBannerWriter(w io.Writer) Option {
	return func(s *Service) {
		s.banner = w
	}
}

// New creates a Service for cfg. Nothing is bound until Run.
func New(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		signal: lifecycle.NewSignal(),
		logger: logging.NewNop(),
		banner: os.Stdout,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = observability.NewMetrics(s.registry)

	if s.instance == "" {
		if host, err := os.Hostname(); err == nil {
			s.instance = host
		} else {
			s.instance = "stop-on-call"
		}
	}
	return s
}

// Config returns the configuration the service was created with.
func (s *Service) Config() config.Config {
	return s.cfg
}

// Stop requests a shutdown, exactly like an authorized stop request.
// It reports whether this call was the one that fired.
func (s *Service) Stop() bool {
	return s.signal.Fire()
}

// Stopping returns a channel closed as soon as a shutdown has been requested by any source.
func (s *Service) Stopping() <-chan struct{} {
	return s.signal.Done()
}

// Ready returns a channel closed once the listener is bound and serving.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Ready.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// MetricsAddr returns the bound metrics address, or nil when metrics are not served.
func (s *Service) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsAddr
}

// State returns the lifecycle state.
func (s *Service) State() lifecycle.State {
	s.mu.Lock()
	coord := s.coord
	s.mu.Unlock()
	if coord == nil {
		return lifecycle.Idle
	}
	return coord.State()
}

// Run binds the listener and serves until a stop is requested, an OS signal arrives or ctx
// is cancelled, then drains and returns. A bind failure is returned before anything is served.
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return lifecycle.ErrAlreadyStarted
	}

	var cleanups []func()
	fail := func(err error) error {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Addr(), err)
	}
	cleanups = append(cleanups, func() { ln.Close() })

	var hooks []namedHook
	coordOpts := []lifecycle.Option{
		lifecycle.WithGracePeriod(s.cfg.GracePeriod),
		lifecycle.WithLogger(s.logger),
		lifecycle.WithObserver(s.metrics),
	}
	if len(s.signals) > 0 {
		coordOpts = append(coordOpts, lifecycle.WithSignals(s.signals...))
	}

	client, owned, err := s.redisClient(ctx)
	if err != nil {
		return fail(err)
	}
	if owned {
		// Closed after Run so the notifier can still publish the final transition.
		defer client.Close()
	}
	if client != nil {
		hook, observer, err := s.startRedis(ctx, client)
		if err != nil {
			return fail(err)
		}
		coordOpts = append(coordOpts, lifecycle.WithObserver(observer))
		hooks = append(hooks, hook)
		cleanups = append(cleanups, func() { _ = hook.fn(context.Background()) })
	}

	metricsHook, err := s.startMetrics()
	if err != nil {
		return fail(err)
	}
	if metricsHook != nil {
		hooks = append(hooks, *metricsHook)
	}

	handler := httpAdapter.NewHandler(s.cfg, s.signal,
		httpAdapter.WithLogger(s.logger),
		httpAdapter.WithMetrics(s.metrics),
	)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	coord := lifecycle.NewCoordinator(srv, s.signal, coordOpts...)
	for _, h := range hooks {
		coord.RegisterHook(h.name, h.fn)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.coord = coord
	s.mu.Unlock()

	tui.PrintBanner(s.banner, ln.Addr().String())
	s.logger.Info("Listening",
		"addr", ln.Addr().String(),
		"method", s.cfg.Method,
		"secret", s.cfg.HasSecret(),
		"grace_period", coord.GracePeriod(),
	)
	close(s.ready)

	return coord.Run(ctx, ln)
}

type namedHook struct {
	name string
	fn   lifecycle.HookFunc
}

// redisClient returns the injected client, or dials Config.RedisURL. owned reports whether
// the caller must close it. Both are nil when Redis is not configured.
func (s *Service) redisClient(ctx context.Context) (client backend.UniversalClient, owned bool, err error) {
	if s.redis != nil {
		return s.redis, false, nil
	}
	if s.cfg.RedisURL == "" {
		return nil, false, nil
	}
	c, err := redisAdapter.Connect(ctx, s.cfg.RedisURL)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// startRedis subscribes the remote trigger and builds the status notifier.
func (s *Service) startRedis(ctx context.Context, client backend.UniversalClient) (namedHook, lifecycle.Observer, error) {
	trigger := redisAdapter.NewRemoteTrigger(client, s.cfg.RedisChannel, s.signal,
		redisAdapter.WithSecret(s.cfg.Secret),
		redisAdapter.WithTriggerLogger(s.logger),
	)
	if err := trigger.Start(ctx); err != nil {
		return namedHook{}, nil, err
	}
	hook := namedHook{name: "redis-trigger", fn: func(context.Context) error {
		if err := trigger.Close(); err != nil && !errors.Is(err, redisAdapter.ErrNotStarted) {
			return err
		}
		return nil
	}}

	notifier := redisAdapter.NewNotifier(client, s.cfg.RedisStatusKey,
		redisAdapter.WithInstance(s.instance),
		redisAdapter.WithNotifierLogger(s.logger),
	)
	return hook, notifier, nil
}

// startMetrics serves the registry on Config.MetricsAddr when set.
func (s *Service) startMetrics() (*namedHook, error) {
	if s.cfg.MetricsAddr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("bind metrics %s: %w", s.cfg.MetricsAddr, err)
	}

	srv := observability.NewServer(s.cfg.MetricsAddr, s.registry)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()

	s.mu.Lock()
	s.metricsAddr = ln.Addr()
	s.mu.Unlock()
	s.logger.Info("Serving metrics", "addr", ln.Addr().String())

	return &namedHook{name: "metrics", fn: srv.Shutdown}, nil
}
