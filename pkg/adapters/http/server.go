package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/stop-on-call/internal/logging"
	"github.com/aretw0/stop-on-call/pkg/config"
	"github.com/aretw0/stop-on-call/pkg/domain"
	"github.com/aretw0/stop-on-call/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes and response bodies.
const (
	HealthPath = "/healthz"
	StopPath   = "/"

	BodyHealthy   = "ok"
	BodyStopping  = "Server stopping..."
	BodyForbidden = "Invalid or missing secret"

	SecretParam  = "secret"
	SecretHeader = "X-Secret"
)

type handlerOptions struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures the handler.
type Option func(*handlerOptions)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *handlerOptions) {
		o.logger = logger
	}
}

// WithMetrics records stop outcomes and health checks.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *handlerOptions) {
		o.metrics = m
	}
}

// NewHandler creates the service router: GET /healthz and the stop route on cfg.Method.
func NewHandler(cfg config.Config, trigger domain.Trigger, opts ...Option) http.Handler {
	o := handlerOptions{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(o.logger))

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		o.metrics.ObserveHealth()
		writeText(w, http.StatusOK, BodyHealthy)
	})

	stop := &StopHandler{
		Secret:  cfg.Secret,
		Trigger: trigger,
		Metrics: o.metrics,
		Logger:  o.logger,
	}
	r.Method(string(cfg.Method), StopPath, stop)

	return r
}

// ParseStopRequest reads the candidate secret from the "secret" query parameter or,
// failing that, the X-Secret header. A query parameter that is present but empty still wins.
func ParseStopRequest(r *http.Request) domain.StopRequest {
	if values, ok := r.URL.Query()[SecretParam]; ok && len(values) > 0 {
		return domain.NewStopRequest(values[0])
	}
	if values := r.Header.Values(SecretHeader); len(values) > 0 {
		return domain.NewStopRequest(values[0])
	}
	return domain.StopRequest{}
}

// StopHandler fires Trigger for authorized requests and answers 403 otherwise.
type StopHandler struct {
	Secret  string
	Trigger domain.Trigger
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

func (h *StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := ParseStopRequest(r)
	if !domain.Authorize(req, h.Secret) {
		h.Metrics.ObserveStop(observability.OutcomeForbidden)
		h.logger().Warn("Stop request rejected",
			"remote_addr", r.RemoteAddr, "secret_present", req.Present)
		writeText(w, http.StatusForbidden, BodyForbidden)
		return
	}

	h.Metrics.ObserveStop(observability.OutcomeAuthorized)
	first := h.Trigger.Fire()
	h.logger().Info("Stop request accepted", "remote_addr", r.RemoteAddr, "first", first)
	writeText(w, http.StatusOK, BodyStopping)
}

func (h *StopHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return logging.NewNop()
	}
	return h.Logger
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Debug("Response write failed", "error", err)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
