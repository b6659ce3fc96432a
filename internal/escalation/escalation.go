// Package escalation turns a newly arrived High severity alert into a one-shot
// alarm fanned out to the configured notifiers.
package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/metrics"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type Event struct {
	Alert      models.Alert `json:"alert"`
	Index      int          `json:"index"`
	DetectedAt time.Time    `json:"detected_at"`
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

type Escalator struct {
	notifiers []Notifier
}

func New(notifiers ...Notifier) *Escalator {
	return &Escalator{notifiers: notifiers}
}

// Escalate dispatches ev to every notifier. Failures are logged and never
// propagate to the caller.
func (e *Escalator) Escalate(ctx context.Context, ev Event) {
	metrics.Escalations.Inc()

	for _, n := range e.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			slog.Error("escalation notifier failed", "notifier", n.Name(), "index", ev.Index, "error", err)
		}
	}
}

// LogNotifier records escalations in the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (LogNotifier) Name() string { return "log" }

func (n LogNotifier) Notify(ctx context.Context, ev Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "high severity accident detected",
		"index", ev.Index,
		"time", ev.Alert.Time(),
		"location", ev.Alert.LocationText(),
	)
	return nil
}
