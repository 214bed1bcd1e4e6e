package postgres

import (
	"encoding/json"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// --- Account ---

func toAccountDomain(m *AccountModel) domain.Account {
	return domain.Account{
		ID:        m.ID,
		Domain:    m.Domain,
		Name:      m.Name,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

// --- StageResult ---

func toResultModel(r *domain.StageResult) StageResultModel {
	return StageResultModel{
		ID:           r.ID,
		AccountID:    r.AccountID,
		Domain:       r.Domain,
		Stage:        r.Stage,
		PeriodStart:  r.PeriodStart,
		PeriodEnd:    r.PeriodEnd,
		Input:        JSONB(r.Input),
		Output:       JSONB(r.Output),
		Status:       string(r.Status),
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
	}
}

func toResultDomain(m *StageResultModel) domain.StageResult {
	return domain.StageResult{
		ID:           m.ID,
		AccountID:    m.AccountID,
		Domain:       m.Domain,
		Stage:        m.Stage,
		PeriodStart:  m.PeriodStart,
		PeriodEnd:    m.PeriodEnd,
		Input:        json.RawMessage(m.Input),
		Output:       json.RawMessage(m.Output),
		Status:       domain.ResultStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
	}
}

// --- Task ---

func toTaskModel(t *domain.Task) TaskModel {
	metadata := t.Metadata
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}
	return TaskModel{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Domain:      t.Domain,
		Title:       t.Title,
		Description: t.Description,
		Category:    string(t.Category),
		OriginStage: t.OriginStage,
		Status:      t.Status,
		Approved:    t.Approved,
		DueDate:     t.DueDate,
		Metadata:    JSONB(metadata),
		CreatedAt:   t.CreatedAt,
	}
}

func toTaskDomain(m *TaskModel) domain.Task {
	return domain.Task{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Domain:      m.Domain,
		Title:       m.Title,
		Description: m.Description,
		Category:    domain.TaskCategory(m.Category),
		OriginStage: m.OriginStage,
		Status:      m.Status,
		Approved:    m.Approved,
		DueDate:     m.DueDate,
		Metadata:    json.RawMessage(m.Metadata),
		CreatedAt:   m.CreatedAt,
	}
}

// --- Recommendation ---

func toRecommendationModel(r *domain.Recommendation) RecommendationModel {
	return RecommendationModel{
		ID:           r.ID,
		ResultID:     r.ResultID,
		Auditor:      r.Auditor,
		AuditedStage: r.AuditedStage,
		Title:        r.Title,
		Explanation:  r.Explanation,
		Severity:     r.Severity,
		Verdict:      r.Verdict,
		Confidence:   r.Confidence,
		ReviewStatus: string(r.ReviewStatus),
		CreatedAt:    r.CreatedAt,
		ReviewedAt:   r.ReviewedAt,
	}
}

func toRecommendationDomain(m *RecommendationModel) domain.Recommendation {
	return domain.Recommendation{
		ID:           m.ID,
		ResultID:     m.ResultID,
		Auditor:      m.Auditor,
		AuditedStage: m.AuditedStage,
		Title:        m.Title,
		Explanation:  m.Explanation,
		Severity:     m.Severity,
		Verdict:      m.Verdict,
		Confidence:   m.Confidence,
		ReviewStatus: domain.ReviewStatus(m.ReviewStatus),
		CreatedAt:    m.CreatedAt,
		ReviewedAt:   m.ReviewedAt,
	}
}
