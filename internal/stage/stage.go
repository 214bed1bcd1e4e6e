// Package stage defines the pipeline stages and the remote agent client.
// Each stage is a declarative Agent value: a name, a bound endpoint, a retry
// budget, the upstream stages whose output it may consume, and a pure payload
// builder. The dependency graph the orchestrator walks falls out of these
// declarations rather than ad hoc call sites.
package stage

import (
	"encoding/json"
	"fmt"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/metrics"
)

// Stage names. These double as the agent discriminator on the wire.
const (
	Proofline          = "proofline"
	Summary            = "summary"
	ReferralEngine     = "referral_engine"
	Opportunity        = "opportunity"
	CROOptimizer       = "cro_optimizer"
	GBPOptimizer       = "gbp_optimizer"
	Guardian           = "guardian"
	GovernanceSentinel = "governance_sentinel"
)

// AuditStages are the system-wide auditor stages. Their own results are
// excluded from audit grouping.
var AuditStages = []string{Guardian, GovernanceSentinel}

// IsAuditStage reports whether name is one of the auditor stages.
func IsAuditStage(name string) bool {
	return name == Guardian || name == GovernanceSentinel
}

// Input carries the upstream data available to a stage's payload builder.
// Which fields are populated depends on the stage's declared upstream deps.
type Input struct {
	Account    domain.Account
	Period     domain.Period
	Metrics    *metrics.Bundle // Raw bundle for the stage's period.
	Previous   *metrics.Bundle // Daily only: the preceding day's bundle.
	Production json.RawMessage // Aggregated production history (summary input).
	Summary    json.RawMessage // Validated summary output (downstream stages).
}

// Agent describes one pipeline stage.
type Agent struct {
	Name        string
	Endpoint    string   // Empty = not configured; invoking fails fatally.
	MaxAttempts int      // Retry budget for this stage's calls.
	Upstream    []string // Stage names whose output the builder may consume.

	// Build shapes the stage-specific additional_data from upstream data.
	// Pure: no I/O, no clock. Nil for auditor stages, whose payloads are
	// assembled by the recommendation aggregator.
	Build func(in *Input) (json.RawMessage, error)
}

// BuildPayload wraps the stage's additional_data in the wire envelope.
func (a *Agent) BuildPayload(in *Input) (*Payload, error) {
	if a.Build == nil {
		return nil, fmt.Errorf("stage %s has no payload builder", a.Name)
	}
	extra, err := a.Build(in)
	if err != nil {
		return nil, fmt.Errorf("building %s payload: %w", a.Name, err)
	}
	return &Payload{
		Agent:     a.Name,
		Domain:    in.Account.Domain,
		AccountID: in.Account.ID.String(),
		DateRange: DateRange{
			Start: in.Period.Start.Format("2006-01-02"),
			End:   in.Period.End.Format("2006-01-02"),
		},
		AdditionalData: extra,
	}, nil
}

// Payload is the JSON body POSTed to a remote agent.
type Payload struct {
	Agent          string          `json:"agent"`
	Domain         string          `json:"domain,omitempty"`
	AccountID      string          `json:"accountId,omitempty"`
	DateRange      DateRange       `json:"dateRange"`
	AdditionalData json.RawMessage `json:"additional_data,omitempty"`
}

// DateRange is the wire form of a period.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Registry holds the configured stage agents by name.
type Registry map[string]*Agent

// NewRegistry builds all stage agents from config. Endpoints resolve through
// the agents config; retry budgets default to the pipeline setting.
func NewRegistry(agents config.AgentsConfig, pipeline config.PipelineConfig) Registry {
	attempts := pipeline.Attempts()

	reg := Registry{}
	add := func(name string, upstream []string, build func(in *Input) (json.RawMessage, error)) {
		reg[name] = &Agent{
			Name:        name,
			Endpoint:    agents.Endpoint(name),
			MaxAttempts: attempts,
			Upstream:    upstream,
			Build:       build,
		}
	}

	add(Proofline, nil, buildProofline)
	add(Summary, nil, buildSummary)
	add(ReferralEngine, nil, buildReferralEngine)
	add(Opportunity, []string{Summary}, buildFromSummary)
	add(CROOptimizer, []string{Summary}, buildFromSummary)
	add(GBPOptimizer, []string{Summary}, buildGBPOptimizer)
	add(Guardian, nil, nil)
	add(GovernanceSentinel, nil, nil)

	return reg
}

// Get returns the named agent or an error for unknown stages.
func (r Registry) Get(name string) (*Agent, error) {
	a, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", name)
	}
	return a, nil
}

// --- Payload builders ---

// buildProofline feeds the daily agent the two independently fetched daily
// bundles: yesterday and the day before.
func buildProofline(in *Input) (json.RawMessage, error) {
	return marshalExtra(map[string]any{
		"yesterday":  in.Metrics,
		"day_before": in.Previous,
	})
}

// buildSummary consumes the month's raw bundle plus aggregated production
// history. The bundle may be partially null; that is usable input.
func buildSummary(in *Input) (json.RawMessage, error) {
	return marshalExtra(map[string]any{
		"metrics":            in.Metrics,
		"production_history": in.Production,
	})
}

// buildReferralEngine is a parallel sibling of summary's input: it consumes
// the same raw bundle, not summary's output.
func buildReferralEngine(in *Input) (json.RawMessage, error) {
	return marshalExtra(map[string]any{
		"metrics": in.Metrics,
	})
}

// buildFromSummary is shared by opportunity and cro_optimizer. Both consume
// only summary's validated output, never the raw bundle.
func buildFromSummary(in *Input) (json.RawMessage, error) {
	if len(in.Summary) == 0 {
		return nil, fmt.Errorf("summary output not available")
	}
	return marshalExtra(map[string]any{
		"summary": in.Summary,
	})
}

func buildGBPOptimizer(in *Input) (json.RawMessage, error) {
	if len(in.Summary) == 0 {
		return nil, fmt.Errorf("summary output not available")
	}
	extra := map[string]any{
		"summary": in.Summary,
	}
	if in.Metrics != nil && in.Metrics.BusinessListing != nil {
		extra["business_listing"] = in.Metrics.BusinessListing
	}
	return marshalExtra(extra)
}

func marshalExtra(extra map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshaling additional_data: %w", err)
	}
	return data, nil
}
