package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
)

// wireRecommendation is the shape auditors emit per finding. Field aliases
// absorb drift between agent versions.
type wireRecommendation struct {
	Title          string  `json:"title"`
	Recommendation string  `json:"recommendation"`
	Explanation    string  `json:"explanation"`
	Reason         string  `json:"reason"`
	Severity       string  `json:"severity"`
	Verdict        string  `json:"verdict"`
	Confidence     float64 `json:"confidence"`
}

// parseRecommendations extracts structured findings from one auditor group
// output. Accepts either an object with a "recommendations" array or a bare
// array. Items with no usable title are dropped, not errored: one malformed
// finding should not discard its siblings.
func parseRecommendations(resultID uuid.UUID, auditor, auditedStage string, raw json.RawMessage, now time.Time) ([]domain.Recommendation, error) {
	items, err := decodeFindings(raw)
	if err != nil {
		return nil, err
	}

	var recs []domain.Recommendation
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = strings.TrimSpace(item.Recommendation)
		}
		if title == "" {
			continue
		}
		explanation := item.Explanation
		if explanation == "" {
			explanation = item.Reason
		}
		recs = append(recs, domain.Recommendation{
			ID:           uuid.New(),
			ResultID:     resultID,
			Auditor:      auditor,
			AuditedStage: auditedStage,
			Title:        title,
			Explanation:  explanation,
			Severity:     strings.ToLower(strings.TrimSpace(item.Severity)),
			Verdict:      strings.ToLower(strings.TrimSpace(item.Verdict)),
			Confidence:   item.Confidence,
			CreatedAt:    now,
		})
	}
	return recs, nil
}

func decodeFindings(raw json.RawMessage) ([]wireRecommendation, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []wireRecommendation
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding findings array: %w", err)
		}
		return items, nil
	}

	var envelope struct {
		Recommendations []wireRecommendation `json:"recommendations"`
		Findings        []wireRecommendation `json:"findings"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decoding findings envelope: %w", err)
	}
	if len(envelope.Recommendations) > 0 {
		return envelope.Recommendations, nil
	}
	return envelope.Findings, nil
}
