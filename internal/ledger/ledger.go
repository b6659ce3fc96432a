// Package ledger holds the authoritative, append-only sequence of accident
// alerts. Entries are never mutated or reordered once appended; readers get
// point-in-time copies.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-accident-alerts/internal/metrics"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const ackMessage = "Alert Received"

var (
	ErrClosed          = errors.New("ledger is closed")
	ErrInvalidSeverity = errors.New("severity must be one of High, Medium, Low")
)

type Options struct {
	// Capacity bounds the ledger to the most recent N alerts. Zero keeps everything.
	Capacity int
	// AssignIDs stamps every alert with a monotonically increasing "seq" field.
	AssignIDs bool
	// Strict rejects alerts whose severity is not a known label.
	Strict     bool
	TimeFormat string
	Clock      func() time.Time
}

// Receipt acknowledges an accepted alert.
type Receipt struct {
	Message string `json:"message"`
	Receipt string `json:"receipt"`
	Seq     uint64 `json:"seq"`
}

// Entry describes one append, as seen by append hooks.
type Entry struct {
	Seq        uint64
	Receipt    string
	ReceivedAt time.Time
	Alert      models.Alert
}

// AppendHook runs under the ledger's write lock, in append order. It must not
// block or call back into the ledger.
type AppendHook func(Entry)

type Ledger struct {
	mu      sync.RWMutex
	entries []models.Alert
	seq     uint64
	hooks   []AppendHook
	closed  bool
	opts    Options
}

func New(opts Options) *Ledger {
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04:05"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Capacity < 0 {
		opts.Capacity = 0
	}
	return &Ledger{opts: opts}
}

// OnAppend registers a hook for subsequent appends.
func (l *Ledger) OnAppend(hook AppendHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Ingest appends payload to the ledger. Unless the ledger is strict, every
// structurally valid payload is accepted as-is; a missing time is filled in
// from the server clock.
func (l *Ledger) Ingest(payload models.Alert) (Receipt, error) {
	if l.opts.Strict {
		if _, ok := models.ParseSeverity(payload.Severity()); !ok {
			metrics.AlertsRejected.Inc()
			return Receipt{}, ErrInvalidSeverity
		}
	}

	alert := payload.Clone()
	now := l.opts.Clock()
	if !hasTime(alert) {
		alert[models.FieldTime] = now.Format(l.opts.TimeFormat)
	}
	receipt := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Receipt{}, ErrClosed
	}

	l.seq++
	if l.opts.AssignIDs {
		alert[models.FieldSeq] = l.seq
	}

	if l.opts.Capacity > 0 && len(l.entries) >= l.opts.Capacity {
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = alert
	} else {
		l.entries = append(l.entries, alert)
	}

	entry := Entry{Seq: l.seq, Receipt: receipt, ReceivedAt: now, Alert: alert}
	for _, hook := range l.hooks {
		hook(entry)
	}

	metrics.AlertsIngested.WithLabelValues(metrics.SeverityLabel(alert.Severity())).Inc()
	metrics.LedgerSize.Set(float64(len(l.entries)))

	return Receipt{Message: ackMessage, Receipt: receipt, Seq: l.seq}, nil
}

// Snapshot returns every held alert in insertion order. The result is a copy
// the caller may keep or modify.
func (l *Ledger) Snapshot() []models.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Alert, len(l.entries))
	for i, a := range l.entries {
		out[i] = a.Clone()
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close rejects further ingestion. Snapshots keep working.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.hooks = nil
}

func hasTime(a models.Alert) bool {
	v, ok := a[models.FieldTime]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && s == "" {
		return false
	}
	return true
}
