package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// RetryPolicy is a bounded-attempt, fixed-delay retry budget. Delays are
// fixed rather than exponential: the pacing exists to respect remote agent
// rate limits, not to back off a congested network.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// withRetry attempts fn up to policy.MaxAttempts times, waiting policy.Delay
// between attempts. An attempt fails if fn errors or its result fails the
// output validator. Each call site carries its own independent budget.
//
// ErrEndpointNotConfigured aborts immediately: a missing endpoint is a
// deployment defect that no amount of retrying fixes.
func (o *Orchestrator) withRetry(ctx context.Context, op string, policy RetryPolicy, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := o.pause(ctx, policy.Delay); err != nil {
				return nil, err
			}
		}

		out, err := fn(ctx)
		if err != nil {
			if errors.Is(err, stage.ErrEndpointNotConfigured) {
				return nil, err
			}
			lastErr = err
		} else if !IsValid(out) {
			lastErr = &InvalidOutputError{Stage: op}
		} else {
			return out, nil
		}

		o.logger.WarnContext(ctx, "attempt failed",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.String("error", lastErr.Error()),
		)
	}

	return nil, &RetriesExhaustedError{Op: op, Attempts: policy.MaxAttempts, Err: lastErr}
}

// pause sleeps for d or returns early when ctx is canceled.
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if o.sleep != nil {
		return o.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
