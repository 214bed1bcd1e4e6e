package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hamiltonwise/signalsai-backend/internal/domain"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// taskSource describes one task-bearing array in a stage's output and the
// owner category its items default to when unlabeled.
type taskSource struct {
	key      string
	category domain.TaskCategory
}

// taskSources maps each stage to the output arrays it may emit tasks under.
// opportunity findings are things the practice owner should act on, so they
// default USER; cro_optimizer emits site changes the service team implements,
// so it defaults ALLORO. referral_engine splits per array.
var taskSources = map[string][]taskSource{
	stage.Opportunity: {
		{key: "tasks", category: domain.CategoryUser},
		{key: "action_items", category: domain.CategoryUser},
		{key: "opportunities", category: domain.CategoryUser},
	},
	stage.CROOptimizer: {
		{key: "tasks", category: domain.CategoryAlloro},
		{key: "action_items", category: domain.CategoryAlloro},
		{key: "recommendations", category: domain.CategoryAlloro},
	},
	stage.GBPOptimizer: {
		{key: "tasks", category: domain.CategoryUser},
		{key: "action_items", category: domain.CategoryUser},
	},
	stage.ReferralEngine: {
		{key: "referral_opportunities", category: domain.CategoryAlloro},
		{key: "action_items", category: domain.CategoryUser},
	},
}

// titleKeys are tried in order when naming an extracted task.
var titleKeys = []string{"title", "task", "name", "action"}

const titleExcerptLen = 80

// extractTasks pulls actionable tasks out of one stage's validated output.
// Extraction never fails a run: a malformed item is logged and skipped, and
// stages with no task-bearing arrays simply yield nothing.
func (o *Orchestrator) extractTasks(ctx context.Context, account domain.Account, stageName string, output json.RawMessage) []domain.Task {
	sources, ok := taskSources[stageName]
	if !ok {
		return nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(output, &doc); err != nil {
		o.logger.WarnContext(ctx, "task extraction skipped",
			slog.String("domain", account.Domain),
			slog.String("stage", stageName),
			slog.String("error", err.Error()),
		)
		return nil
	}

	now := o.now()
	var tasks []domain.Task
	for _, src := range sources {
		raw, present := doc[src.key]
		if !present {
			continue
		}
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			o.logger.WarnContext(ctx, "task array malformed",
				slog.String("domain", account.Domain),
				slog.String("stage", stageName),
				slog.String("key", src.key),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, item := range items {
			task, ok := buildTask(account, stageName, src.category, item, now)
			if !ok {
				continue
			}
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// buildTask shapes one array item into a task. Items that are not objects or
// carry no usable text are dropped.
func buildTask(account domain.Account, stageName string, fallback domain.TaskCategory, item map[string]json.RawMessage, now time.Time) (domain.Task, bool) {
	title := firstString(item, titleKeys...)
	description := firstString(item, "description", "details", "explanation")
	if title == "" {
		// No named title: fall back to an excerpt of the description.
		if description == "" {
			return domain.Task{}, false
		}
		title = excerpt(description, titleExcerptLen)
	}

	metadata, _ := json.Marshal(item)

	task := domain.Task{
		ID:          uuid.New(),
		AccountID:   account.ID,
		Domain:      account.Domain,
		Title:       title,
		Description: description,
		Category:    itemCategory(item, fallback),
		OriginStage: stageName,
		Status:      domain.TaskPending,
		Metadata:    metadata,
		CreatedAt:   now,
	}

	if due := firstString(item, "due_date", "dueDate"); due != "" {
		if t, err := time.Parse("2006-01-02", due); err == nil {
			task.DueDate = &t
		}
	}
	return task, true
}

// itemCategory honors an explicit per-item label, otherwise the stage default.
func itemCategory(item map[string]json.RawMessage, fallback domain.TaskCategory) domain.TaskCategory {
	label := strings.ToUpper(firstString(item, "category", "type", "owner"))
	switch label {
	case string(domain.CategoryUser):
		return domain.CategoryUser
	case string(domain.CategoryAlloro):
		return domain.CategoryAlloro
	}
	return fallback
}

func firstString(item map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
