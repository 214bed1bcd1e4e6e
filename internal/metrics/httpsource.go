package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// HTTPSource fetches a sub-bundle from an internal metrics adapter service
// via GET with domain/accountId/start/end query parameters.
type HTTPSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a source for one provider adapter.
func NewHTTPSource(name, baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context, account domain.Account, period domain.Period) (json.RawMessage, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s source URL: %w", s.name, err)
	}
	q := u.Query()
	q.Set("domain", account.Domain)
	q.Set("accountId", account.ID.String())
	q.Set("start", period.Start.Format("2006-01-02"))
	q.Set("end", period.End.Format("2006-01-02"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s metrics: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s source returned %d: %s", s.name, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", s.name, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s source returned invalid JSON", s.name)
	}
	return json.RawMessage(data), nil
}

// productionSource implements ProductionFetcher against the practice
// management adapter's production-history endpoint.
type productionSource struct {
	src *HTTPSource
}

func (p productionSource) FetchProduction(ctx context.Context, account domain.Account, period domain.Period) (json.RawMessage, error) {
	return p.src.Fetch(ctx, account, period)
}

// BuildCollector assembles the Collector and optional ProductionFetcher from
// config. Sources without a URL are left out (their sub-bundles stay null).
func BuildCollector(cfg config.MetricSourcesConfig, logger *slog.Logger) (*Collector, ProductionFetcher) {
	timeout := cfg.Timeout()

	var sources []Source
	add := func(name, url string) {
		if url != "" {
			sources = append(sources, NewHTTPSource(name, url, timeout))
		}
	}
	add(SourceAnalytics, cfg.AnalyticsURL)
	add(SourceBusinessListing, cfg.BusinessListingURL)
	add(SourceSearchConsole, cfg.SearchConsoleURL)
	add(SourceOnPageBehavior, cfg.OnPageBehaviorURL)
	add(SourcePracticeManagement, cfg.PracticeManagementURL)

	var production ProductionFetcher
	if cfg.ProductionURL != "" {
		production = productionSource{src: NewHTTPSource("production", cfg.ProductionURL, timeout)}
	}
	return NewCollector(sources, logger), production
}
