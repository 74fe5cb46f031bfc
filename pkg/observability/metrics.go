package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/stop-on-call/pkg/lifecycle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stop_on_call"

// Stop request outcomes.
const (
	OutcomeAuthorized = "authorized"
	OutcomeForbidden  = "forbidden"
)

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	StopRequests     *prometheus.CounterVec
	HealthChecks     prometheus.Counter
	ShutdownTriggers *prometheus.CounterVec
	DrainDuration    prometheus.Histogram
	State            prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StopRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stop_requests_total",
				Help:      "Stop requests received, by outcome.",
			},
			[]string{"outcome"},
		),
		HealthChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Health checks served.",
		}),
		ShutdownTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shutdown_triggers_total",
				Help:      "Wake source that started the drain.",
			},
			[]string{"source"},
		),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Time from the start of the drain until the listener stopped.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Lifecycle state: 0 idle, 1 running, 2 draining, 3 stopped.",
		}),
	}
	reg.MustRegister(m.StopRequests, m.HealthChecks, m.ShutdownTriggers, m.DrainDuration, m.State)
	return m
}

// ObserveStop counts a stop request with the given outcome.
func (m *Metrics) ObserveStop(outcome string) {
	if m == nil {
		return
	}
	m.StopRequests.WithLabelValues(outcome).Inc()
}

// ObserveHealth counts a health check.
func (m *Metrics) ObserveHealth() {
	if m == nil {
		return
	}
	m.HealthChecks.Inc()
}

// OnTransition implements lifecycle.Observer.
func (m *Metrics) OnTransition(ctx context.Context, t lifecycle.Transition) {
	if m == nil {
		return
	}
	m.State.Set(float64(t.To))
	switch t.To {
	case lifecycle.Draining:
		m.ShutdownTriggers.WithLabelValues(string(t.Source)).Inc()
	case lifecycle.Stopped:
		m.DrainDuration.Observe(t.Elapsed.Seconds())
	}
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewServer returns an unstarted server exposing GET /metrics on addr.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
