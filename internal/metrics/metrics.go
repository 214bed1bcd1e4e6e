// Package metrics implements the business-metric collaborators consumed by
// the pipeline orchestrator. Each third-party provider (analytics, business
// listing, search console, on-page behavior, practice management) is a Source
// returning an opaque JSON sub-bundle; the Collector fetches them in parallel
// and tolerates partial failure: a partially-null bundle is usable input,
// not an error.
package metrics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// Bundle aggregates the independently-sourced sub-bundles for one account and
// period. Any field may be nil when that provider failed or is unconfigured.
type Bundle struct {
	Analytics          json.RawMessage `json:"analytics,omitempty"`
	BusinessListing    json.RawMessage `json:"business_listing,omitempty"`
	SearchConsole      json.RawMessage `json:"search_console,omitempty"`
	OnPageBehavior     json.RawMessage `json:"on_page_behavior,omitempty"`
	PracticeManagement json.RawMessage `json:"practice_management,omitempty"`
}

// Empty reports whether every sub-bundle is missing.
func (b *Bundle) Empty() bool {
	return b == nil || (b.Analytics == nil && b.BusinessListing == nil &&
		b.SearchConsole == nil && b.OnPageBehavior == nil && b.PracticeManagement == nil)
}

// Source fetches one provider's sub-bundle for an account and period.
type Source interface {
	Name() string
	Fetch(ctx context.Context, account domain.Account, period domain.Period) (json.RawMessage, error)
}

// ProductionFetcher returns aggregated practice-management production history
// for the summary stage's additional context. Optional collaborator.
type ProductionFetcher interface {
	FetchProduction(ctx context.Context, account domain.Account, period domain.Period) (json.RawMessage, error)
}

// Fetcher is the contract the orchestrator consumes.
type Fetcher interface {
	FetchBundle(ctx context.Context, account domain.Account, period domain.Period) (*Bundle, error)
}

// Collector implements Fetcher over a set of named Sources.
type Collector struct {
	sources map[string]Source
	logger  *slog.Logger
}

// Sub-bundle names recognized by the Collector.
const (
	SourceAnalytics          = "analytics"
	SourceBusinessListing    = "business_listing"
	SourceSearchConsole      = "search_console"
	SourceOnPageBehavior     = "on_page_behavior"
	SourcePracticeManagement = "practice_management"
)

// NewCollector creates a Collector. Sources map by name; unknown names are
// ignored at assembly time.
func NewCollector(sources []Source, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Collector{sources: byName, logger: logger}
}

// FetchBundle fetches all configured sub-bundles concurrently. Provider
// failures are logged and leave that sub-bundle nil; the bundle is returned
// regardless. These are parallel reads with no shared mutation, the only
// concurrency the orchestration model allows.
func (c *Collector) FetchBundle(ctx context.Context, account domain.Account, period domain.Period) (*Bundle, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]json.RawMessage, len(c.sources))
	)

	for name, src := range c.sources {
		wg.Add(1)
		go func(name string, src Source) {
			defer wg.Done()
			data, err := src.Fetch(ctx, account, period)
			if err != nil {
				c.logger.WarnContext(ctx, "metric source fetch failed",
					slog.String("source", name),
					slog.String("domain", account.Domain),
					slog.String("period", period.Key()),
					slog.String("error", err.Error()),
				)
				return
			}
			mu.Lock()
			results[name] = data
			mu.Unlock()
		}(name, src)
	}
	wg.Wait()

	return &Bundle{
		Analytics:          results[SourceAnalytics],
		BusinessListing:    results[SourceBusinessListing],
		SearchConsole:      results[SourceSearchConsole],
		OnPageBehavior:     results[SourceOnPageBehavior],
		PracticeManagement: results[SourcePracticeManagement],
	}, nil
}

// Compile-time check.
var _ Fetcher = (*Collector)(nil)
