// Package notification delivers pipeline failure events to outbound
// channels (generic webhook, Slack). Delivery is best-effort: a failed
// notification is logged and never changes a pipeline outcome.
package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

// Sender is a single outbound notification channel.
type Sender interface {
	// Type returns the channel identifier ("webhook", "slack").
	Type() string
	// Send delivers a message to the channel.
	Send(ctx context.Context, msg *Message) error
}

// Message is the payload sent through a notification channel.
type Message struct {
	Subject  string            // Short one-line summary.
	Body     string            // Plain text body.
	Metadata map[string]string // Pipeline, stage, domain, period.
}

// Dispatcher fans a pipeline event out to every registered sender.
// Implements pipeline.Notifier.
type Dispatcher struct {
	senders []Sender
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher with no channels registered.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{logger: logger}
}

// RegisterSender adds a channel backend. Not thread-safe, call at startup only.
func (d *Dispatcher) RegisterSender(s Sender) {
	d.senders = append(d.senders, s)
}

// Notify delivers the event to all registered channels.
func (d *Dispatcher) Notify(ctx context.Context, ev pipeline.Event) {
	if len(d.senders) == 0 {
		return
	}

	msg := messageFromEvent(ev)
	for _, s := range d.senders {
		if err := s.Send(ctx, msg); err != nil {
			d.logger.Warn("notification send failed",
				slog.String("channel", s.Type()),
				slog.String("pipeline", ev.Pipeline),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.logger.Info("notification sent",
			slog.String("channel", s.Type()),
			slog.String("pipeline", ev.Pipeline),
		)
	}
}

func messageFromEvent(ev pipeline.Event) *Message {
	subject := fmt.Sprintf("%s pipeline failed", ev.Pipeline)
	if ev.Domain != "" {
		subject = fmt.Sprintf("%s pipeline failed for %s", ev.Pipeline, ev.Domain)
	}

	body := fmt.Sprintf("Pipeline: %s\nStage: %s\nPeriod: %s\nError: %s",
		ev.Pipeline, ev.Stage, ev.Period.Key(), ev.Error)

	return &Message{
		Subject: subject,
		Body:    body,
		Metadata: map[string]string{
			"pipeline": ev.Pipeline,
			"domain":   ev.Domain,
			"stage":    ev.Stage,
			"period":   ev.Period.Key(),
		},
	}
}

// BuildDispatcher wires a dispatcher from config. Returns nil when no
// channel is configured so callers can skip notification entirely.
func BuildDispatcher(cfg *config.NotificationConfig, logger *slog.Logger) *Dispatcher {
	if cfg == nil {
		return nil
	}

	d := NewDispatcher(logger)
	if cfg.WebhookURL != "" {
		d.RegisterSender(NewWebhookSender(cfg.WebhookURL, logger))
	}
	if cfg.SlackWebhookURL != "" {
		d.RegisterSender(NewSlackSender(cfg.SlackWebhookURL, logger))
	}
	if len(d.senders) == 0 {
		return nil
	}
	return d
}

var _ pipeline.Notifier = (*Dispatcher)(nil)
