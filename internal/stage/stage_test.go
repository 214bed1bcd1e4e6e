package stage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/metrics"
)

func testInput() *Input {
	return &Input{
		Account: domain.Account{
			ID:     uuid.New(),
			Domain: "brightsmile.com",
		},
		Period: domain.NewPeriod(
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		),
		Metrics: &metrics.Bundle{
			Analytics:       json.RawMessage(`{"sessions": 100}`),
			BusinessListing: json.RawMessage(`{"views": 40}`),
		},
	}
}

func TestNewRegistry_AllStagesPresent(t *testing.T) {
	reg := NewRegistry(config.AgentsConfig{BaseURL: "http://agents.local"}, config.PipelineConfig{})

	for _, name := range []string{Proofline, Summary, ReferralEngine, Opportunity, CROOptimizer, GBPOptimizer, Guardian, GovernanceSentinel} {
		agent, err := reg.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if agent.Endpoint != "http://agents.local/"+name {
			t.Errorf("%s endpoint = %s", name, agent.Endpoint)
		}
		if agent.MaxAttempts != 3 {
			t.Errorf("%s attempts = %d, want default 3", name, agent.MaxAttempts)
		}
	}

	if _, err := reg.Get("nonexistent"); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestNewRegistry_ExplicitEndpointWins(t *testing.T) {
	reg := NewRegistry(config.AgentsConfig{
		BaseURL:   "http://agents.local",
		Endpoints: map[string]string{Summary: "http://special.local/v2/summary"},
	}, config.PipelineConfig{})

	agent, _ := reg.Get(Summary)
	if agent.Endpoint != "http://special.local/v2/summary" {
		t.Errorf("endpoint = %s", agent.Endpoint)
	}
}

func TestBuildPayload_Envelope(t *testing.T) {
	reg := NewRegistry(config.AgentsConfig{BaseURL: "http://agents.local"}, config.PipelineConfig{})
	agent, _ := reg.Get(Summary)

	in := testInput()
	payload, err := agent.BuildPayload(in)
	if err != nil {
		t.Fatal(err)
	}
	if payload.Agent != Summary {
		t.Errorf("agent = %s", payload.Agent)
	}
	if payload.Domain != "brightsmile.com" || payload.AccountID != in.Account.ID.String() {
		t.Errorf("identity = %s / %s", payload.Domain, payload.AccountID)
	}
	if payload.DateRange.Start != "2025-05-01" || payload.DateRange.End != "2025-06-01" {
		t.Errorf("dateRange = %+v", payload.DateRange)
	}
}

func TestBuildPayload_AuditorHasNoBuilder(t *testing.T) {
	reg := NewRegistry(config.AgentsConfig{BaseURL: "http://agents.local"}, config.PipelineConfig{})
	agent, _ := reg.Get(Guardian)
	if _, err := agent.BuildPayload(testInput()); err == nil {
		t.Error("auditor stages must not build account payloads")
	}
}

func TestBuildSummary_CarriesMetricsAndProduction(t *testing.T) {
	in := testInput()
	in.Production = json.RawMessage(`{"total_production": 84000}`)

	extra, err := buildSummary(in)
	if err != nil {
		t.Fatal(err)
	}
	s := string(extra)
	if !strings.Contains(s, `"sessions"`) || !strings.Contains(s, `"total_production"`) {
		t.Errorf("additional_data = %s", s)
	}
}

func TestBuildFromSummary_RequiresSummary(t *testing.T) {
	in := testInput()
	if _, err := buildFromSummary(in); err == nil {
		t.Error("expected error without summary output")
	}

	in.Summary = json.RawMessage(`{"summary": "ok"}`)
	extra, err := buildFromSummary(in)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(extra), `"sessions"`) {
		t.Errorf("downstream payload must not carry raw metrics: %s", extra)
	}
}

func TestBuildGBPOptimizer_IncludesBusinessListing(t *testing.T) {
	in := testInput()
	in.Summary = json.RawMessage(`{"summary": "ok"}`)

	extra, err := buildGBPOptimizer(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(extra), `"views"`) {
		t.Errorf("expected business_listing sub-bundle: %s", extra)
	}
}

func TestBuildProofline_TwoDays(t *testing.T) {
	in := testInput()
	in.Previous = &metrics.Bundle{Analytics: json.RawMessage(`{"sessions": 90}`)}

	extra, err := buildProofline(in)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(extra, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["yesterday"]; !ok {
		t.Error("missing yesterday bundle")
	}
	if _, ok := decoded["day_before"]; !ok {
		t.Error("missing day_before bundle")
	}
}
