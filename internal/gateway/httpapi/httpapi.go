// Package httpapi implements the HTTP API gateway for SignalsAI.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - All requests logged
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/okapi"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/observability"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Runner triggers pipeline runs on demand. Satisfied by pipeline.Orchestrator.
type Runner interface {
	RunDailyAll(ctx context.Context, ref time.Time) (*pipeline.Report, error)
	RunMonthlyAll(ctx context.Context, ref time.Time) (*pipeline.Report, error)
	RunMonthly(ctx context.Context, account domain.Account, ref time.Time, force bool) pipeline.AccountOutcome
	RunAudit(ctx context.Context, ref time.Time, force bool) (*pipeline.AuditReport, error)
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr string // e.g., ":8080"
	EnableDocs bool
	APIKeys    map[string]string // API key to operator ID mapping. Keys from env.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config          Config
	runner          Runner
	accounts        pipeline.AccountStore
	recommendations pipeline.RecommendationStore
	logger          *slog.Logger
	server          *http.Server
	okapi           *okapi.Okapi
	group           *okapi.Group
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, runner Runner, stores pipeline.Stores, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:          cfg,
		runner:          runner,
		accounts:        stores.Accounts,
		recommendations: stores.Recommendations,
		logger:          logger,
		okapi:           okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs enables the generated OpenAPI documentation endpoints.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "SignalsAI",
			Version: "v0.0.1",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	// Pipeline trigger endpoints.
	g.group.Post("/pipelines/daily/run", g.handleDailyRun,
		okapi.DocSummary("Run the daily pipeline for all active accounts"),
		okapi.DocTags("Pipelines"),
		okapi.DocRequestBody(TriggerRequest{}),
		okapi.DocResponse(RunReportResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	g.group.Post("/pipelines/monthly/run", g.handleMonthlyRun,
		okapi.DocSummary("Run the monthly pipeline for all active accounts"),
		okapi.DocTags("Pipelines"),
		okapi.DocRequestBody(TriggerRequest{}),
		okapi.DocResponse(RunReportResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	g.group.Post("/accounts/{id}/pipelines/monthly/run", g.handleAccountMonthlyRun,
		okapi.DocSummary("Run the monthly pipeline for a single account"),
		okapi.DocTags("Pipelines"),
		okapi.DocPathParam("id", "string", "Account ID (UUID)"),
		okapi.DocRequestBody(TriggerRequest{}),
		okapi.DocResponse(OutcomeResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Post("/pipelines/audit/run", g.handleAuditRun,
		okapi.DocSummary("Run the system audit over the previous month"),
		okapi.DocTags("Pipelines"),
		okapi.DocRequestBody(TriggerRequest{}),
		okapi.DocResponse(AuditRunResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)

	// Recommendation review.
	g.group.Put("/recommendations/{id}/review", g.handleRecommendationReview,
		okapi.DocSummary("Record a human review verdict for a recommendation"),
		okapi.DocTags("Recommendations"),
		okapi.DocPathParam("id", "string", "Recommendation ID (UUID)"),
		okapi.DocRequestBody(ReviewRequest{}),
		okapi.DocResponse(ReviewResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      15 * time.Minute, // Trigger endpoints run pipelines synchronously.
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the API key and stores the mapped operator ID.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		operatorID := ""
		for key, op := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				operatorID = op
			}
		}
		if operatorID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("operatorID", operatorID)
		return next(c)
	}
}
