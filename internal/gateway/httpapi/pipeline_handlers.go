package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// **** Pipeline request/response types ****

// TriggerRequest is the JSON body for pipeline trigger endpoints.
// All fields are optional.
type TriggerRequest struct {
	Date  string `json:"date,omitempty"`  // Reference date, "2006-01-02". Default: today.
	Force bool   `json:"force,omitempty"` // Bypass the duplicate-run guard.
}

// OutcomeResponse is the per-account result of a pipeline run.
type OutcomeResponse struct {
	AccountID string `json:"account_id"`
	Domain    string `json:"domain"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunReportResponse is the JSON response for all-accounts trigger endpoints.
type RunReportResponse struct {
	Pipeline  string            `json:"pipeline"`
	Period    string            `json:"period"`
	Succeeded int               `json:"succeeded"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Outcomes  []OutcomeResponse `json:"outcomes"`
}

// AuditGroupResponse is the per-stage-group result of an audit run.
type AuditGroupResponse struct {
	Stage           string `json:"stage"`
	ResultCount     int    `json:"result_count"`
	GuardianOK      bool   `json:"guardian_ok"`
	GovernanceOK    bool   `json:"governance_ok"`
	GuardianError   string `json:"guardian_error,omitempty"`
	GovernanceError string `json:"governance_error,omitempty"`
}

// AuditRunResponse is the JSON response for POST /v1/pipelines/audit/run.
type AuditRunResponse struct {
	Period     string               `json:"period"`
	Skipped    bool                 `json:"skipped"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Groups     []AuditGroupResponse `json:"groups,omitempty"`
}

func toOutcomeResponse(o pipeline.AccountOutcome) OutcomeResponse {
	return OutcomeResponse{
		AccountID: o.AccountID.String(),
		Domain:    o.Domain,
		Status:    string(o.Status),
		Reason:    o.Reason,
		Error:     o.Error,
	}
}

func toRunReportResponse(r *pipeline.Report) RunReportResponse {
	resp := RunReportResponse{
		Pipeline:  r.Pipeline,
		Period:    r.Period.Key(),
		Succeeded: r.Succeeded,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Outcomes:  make([]OutcomeResponse, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		resp.Outcomes = append(resp.Outcomes, toOutcomeResponse(o))
	}
	return resp
}

func toAuditRunResponse(r *pipeline.AuditReport) AuditRunResponse {
	resp := AuditRunResponse{
		Period:     r.Period.Key(),
		Skipped:    r.Skipped,
		SkipReason: r.SkipReason,
		Groups:     make([]AuditGroupResponse, 0, len(r.Groups)),
	}
	for _, g := range r.Groups {
		resp.Groups = append(resp.Groups, AuditGroupResponse{
			Stage:           g.Stage,
			ResultCount:     g.ResultCount,
			GuardianOK:      g.GuardianOK,
			GovernanceOK:    g.GovernanceOK,
			GuardianError:   g.GuardianError,
			GovernanceError: g.GovernanceError,
		})
	}
	return resp
}

// refDate parses an optional trigger date. Zero request date means now.
func refDate(req TriggerRequest) (time.Time, error) {
	if req.Date == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", req.Date)
}

// bindTrigger decodes an optional trigger body. An empty body is valid.
func bindTrigger(c *okapi.Context) (TriggerRequest, error) {
	var req TriggerRequest
	if c.Request().ContentLength == 0 {
		return req, nil
	}
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	return req, nil
}

// **** Handlers ****

func (g *Gateway) handleDailyRun(c *okapi.Context) error {
	req, err := bindTrigger(c)
	if err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	ref, err := refDate(req)
	if err != nil {
		return c.AbortBadRequest("date must be YYYY-MM-DD")
	}

	g.logger.Info("http trigger",
		slog.String("operator", c.GetString("operatorID")),
		slog.String("pipeline", "daily"),
		slog.Time("ref", ref),
	)

	report, err := g.runner.RunDailyAll(c.Context(), ref)
	if err != nil {
		g.logger.Error("daily trigger failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("daily pipeline run failed")
	}
	return c.OK(toRunReportResponse(report))
}

func (g *Gateway) handleMonthlyRun(c *okapi.Context) error {
	req, err := bindTrigger(c)
	if err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	ref, err := refDate(req)
	if err != nil {
		return c.AbortBadRequest("date must be YYYY-MM-DD")
	}

	g.logger.Info("http trigger",
		slog.String("operator", c.GetString("operatorID")),
		slog.String("pipeline", "monthly"),
		slog.Time("ref", ref),
	)

	report, err := g.runner.RunMonthlyAll(c.Context(), ref)
	if err != nil {
		g.logger.Error("monthly trigger failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("monthly pipeline run failed")
	}
	return c.OK(toRunReportResponse(report))
}

func (g *Gateway) handleAccountMonthlyRun(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid account ID")
	}

	req, err := bindTrigger(c)
	if err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	ref, err := refDate(req)
	if err != nil {
		return c.AbortBadRequest("date must be YYYY-MM-DD")
	}

	account, err := g.accounts.Get(c.Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "account not found"})
	}

	g.logger.Info("http trigger",
		slog.String("operator", c.GetString("operatorID")),
		slog.String("pipeline", "monthly"),
		slog.String("domain", account.Domain),
		slog.Bool("force", req.Force),
	)

	outcome := g.runner.RunMonthly(c.Context(), *account, ref, req.Force)
	return c.OK(toOutcomeResponse(outcome))
}

func (g *Gateway) handleAuditRun(c *okapi.Context) error {
	req, err := bindTrigger(c)
	if err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	ref, err := refDate(req)
	if err != nil {
		return c.AbortBadRequest("date must be YYYY-MM-DD")
	}

	g.logger.Info("http trigger",
		slog.String("operator", c.GetString("operatorID")),
		slog.String("pipeline", "audit"),
		slog.Bool("force", req.Force),
	)

	report, err := g.runner.RunAudit(c.Context(), ref, req.Force)
	if err != nil {
		g.logger.Error("audit trigger failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("audit run failed")
	}
	return c.OK(toAuditRunResponse(report))
}

// **** Recommendation review ****

// ReviewRequest is the JSON body for PUT /v1/recommendations/{id}/review.
type ReviewRequest struct {
	Status string `json:"status"` // "PASS" or "REJECT".
}

// ReviewResponse is the JSON response after recording a review.
type ReviewResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

func (g *Gateway) handleRecommendationReview(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid recommendation ID")
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	status := domain.ReviewStatus(req.Status)
	if status != domain.ReviewPass && status != domain.ReviewReject {
		return c.AbortBadRequest("status must be \"PASS\" or \"REJECT\"")
	}

	reviewedAt := time.Now().UTC()
	if err := g.recommendations.ReviewRecommendation(c.Context(), id, status, reviewedAt); err != nil {
		g.logger.Warn("recommendation review failed",
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusNotFound, okapi.M{"error": "recommendation not found"})
	}

	g.logger.Info("recommendation reviewed",
		slog.String("operator", c.GetString("operatorID")),
		slog.String("id", id.String()),
		slog.String("status", string(status)),
	)

	return c.OK(ReviewResponse{
		ID:         id.String(),
		Status:     string(status),
		ReviewedAt: reviewedAt,
	})
}
