package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Facade ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}

	// Nil facade methods must be safe to call.
	obs.Shutdown(context.Background())
	if obs.TracerOrNil() != nil {
		t.Error("TracerOrNil on nil facade should return nil")
	}
	if obs.MetricsOrNil() != nil {
		t.Error("MetricsOrNil on nil facade should return nil")
	}
}

func TestNew_MetricsEnabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{
		Metrics: &config.MetricsConfig{Enabled: true},
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if obs.Metrics == nil {
		t.Fatal("expected metrics collector")
	}
	if obs.Metrics.Registry == nil {
		t.Fatal("expected custom registry")
	}
	if obs.Health == nil {
		t.Fatal("health checker should always be created")
	}
	if obs.Tracer != nil {
		t.Error("tracing should be disabled")
	}
}

// --- Health checker ---

func TestHealthChecker_NoChecks(t *testing.T) {
	h := NewHealthChecker(testLogger())
	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestHealthChecker_DegradedOnFailure(t *testing.T) {
	h := NewHealthChecker(testLogger())
	h.AddCheck("db", func(ctx context.Context) error { return nil })
	h.AddCheck("agents", func(ctx context.Context) error { return errors.New("connection refused") })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", status.Status)
	}
	if status.Checks["db"].Status != "ok" {
		t.Errorf("db check = %+v, want ok", status.Checks["db"])
	}
	if status.Checks["agents"].Status != "fail" {
		t.Errorf("agents check = %+v, want fail", status.Checks["agents"])
	}
	if status.Checks["agents"].Message == "" {
		t.Error("failed check should carry a message")
	}
}

// --- HTTP middleware ---

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	var total float64
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("writing metric: %v", err)
		}
		if pb.Counter != nil {
			total += pb.Counter.GetValue()
		}
	}
	return total
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pipelines/daily/run", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if got := counterValue(t, metrics.HTTPRequestsTotal); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
