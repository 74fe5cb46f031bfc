package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/stop-on-call/pkg/lifecycle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveStop(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveStop(OutcomeForbidden)
	m.ObserveStop(OutcomeForbidden)
	m.ObserveStop(OutcomeAuthorized)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StopRequests.WithLabelValues(OutcomeForbidden)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StopRequests.WithLabelValues(OutcomeAuthorized)))
}

func TestMetrics_OnTransition(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	m.OnTransition(ctx, lifecycle.Transition{From: lifecycle.Idle, To: lifecycle.Running})
	assert.Equal(t, float64(lifecycle.Running), testutil.ToFloat64(m.State))

	m.OnTransition(ctx, lifecycle.Transition{From: lifecycle.Running, To: lifecycle.Draining, Source: lifecycle.SourceTrigger})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShutdownTriggers.WithLabelValues("trigger")))

	m.OnTransition(ctx, lifecycle.Transition{
		From: lifecycle.Draining, To: lifecycle.Stopped,
		Source: lifecycle.SourceTrigger, Elapsed: 120 * time.Millisecond,
	})
	assert.Equal(t, float64(lifecycle.Stopped), testutil.ToFloat64(m.State))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DrainDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStop(OutcomeAuthorized)
		m.ObserveHealth()
		m.OnTransition(context.Background(), lifecycle.Transition{To: lifecycle.Stopped})
	})
}

func TestNewServer_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveHealth()

	srv := NewServer(":0", reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "stop_on_call_health_checks_total 1")
}
