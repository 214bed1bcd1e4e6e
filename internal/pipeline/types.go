// Package pipeline implements the agent workflow orchestrator: the component
// that sequences analysis stages per account and period, retries failures
// with fixed pacing, prevents duplicate execution, and gates persistence on
// full-pipeline success.
//
// Execution is strictly sequential: no stage, account, or audit group runs
// concurrently with another. The remote agents and metric providers impose
// rate limits, so every loop inserts an explicit pause between iterations.
package pipeline

import (
	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// OutcomeStatus classifies one account's pipeline run.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Skip reasons reported on OutcomeSkipped.
const (
	SkipAlreadyExists   = "already_exists"
	SkipMonthlyNotReady = "monthly_not_ready"
)

// AccountOutcome is the operator-visible result of one account's run.
type AccountOutcome struct {
	AccountID uuid.UUID     `json:"account_id"`
	Domain    string        `json:"domain"`
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"` // Skip reason.
	Error     string        `json:"error,omitempty"`  // Failure message.
}

// Report aggregates per-account outcomes for a trigger invocation.
type Report struct {
	Pipeline  string           `json:"pipeline"`
	Period    domain.Period    `json:"period"`
	Outcomes  []AccountOutcome `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
}

func (r *Report) add(o AccountOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// GroupOutcome is the per-stage-group result of the system audit pipeline.
// Group failures are independent: one group's audit failure never blocks
// the others.
type GroupOutcome struct {
	Stage           string `json:"stage"`
	ResultCount     int    `json:"result_count"`
	GuardianOK      bool   `json:"guardian_ok"`
	GovernanceOK    bool   `json:"governance_ok"`
	GuardianError   string `json:"guardian_error,omitempty"`
	GovernanceError string `json:"governance_error,omitempty"`
}

// AuditReport is the operator-visible result of one audit run.
type AuditReport struct {
	Period             domain.Period  `json:"period"`
	Skipped            bool           `json:"skipped"`
	SkipReason         string         `json:"skip_reason,omitempty"`
	Groups             []GroupOutcome `json:"groups"`
	GuardianResultID   uuid.UUID      `json:"guardian_result_id,omitempty"`
	GovernanceResultID uuid.UUID      `json:"governance_result_id,omitempty"`
}
