// Package watcher turns periodic full-snapshot polling of the ledger into a
// stream of newly arrived alerts and escalates the High severity ones.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/escalation"
	"github.com/mr1hm/go-accident-alerts/internal/metrics"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/view"
)

var (
	ErrPollInFlight = errors.New("previous poll still in flight")
	ErrStopped      = errors.New("watcher stopped")
)

// Escalator receives every newly arrived High severity alert exactly once.
type Escalator interface {
	Escalate(ctx context.Context, ev escalation.Event)
}

type Options struct {
	Interval time.Duration
	Policy   DeltaPolicy
	Filter   view.Filter
	Clock    func() time.Time
}

// PollResult describes one successful poll.
type PollResult struct {
	PrevLen   int
	Len       int
	Arrivals  []int
	Escalated []int
}

type Engine struct {
	fetcher   Fetcher
	escalator Escalator
	opts      Options
	inflight  atomic.Bool

	mu        sync.RWMutex
	alerts    []models.Alert
	lastSeq   uint64
	state     view.State
	listeners []func(view.State)
	stopped   bool
	cancelRun context.CancelFunc
}

func New(fetcher Fetcher, escalator Escalator, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Policy == "" {
		opts.Policy = PolicyTail
	}
	if opts.Filter == "" {
		opts.Filter = view.FilterAll
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		fetcher:   fetcher,
		escalator: escalator,
		opts:      opts,
		state:     view.Build(nil, opts.Filter, time.Time{}),
	}
}

// OnUpdate registers fn to receive the view after every applied poll and
// every filter change.
func (e *Engine) OnUpdate(fn func(view.State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Run polls immediately and then on every interval until ctx is done or Stop
// is called. Poll failures are logged and the cadence is kept.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.cancelRun = cancel
	e.mu.Unlock()

	slog.Info("starting watcher", "interval", e.opts.Interval, "policy", e.opts.Policy)

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	e.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher shutting down")
			return nil
		case <-ticker.C:
			e.tick(ctx)
			// Drop a tick that queued up behind a slow fetch.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if _, err := e.Poll(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrStopped) {
			return
		}
		slog.Warn("poll failed", "error", err)
	}
}

// Poll fetches one snapshot and applies it. A failed fetch leaves the held
// view untouched. Only one poll may be in flight at a time.
func (e *Engine) Poll(ctx context.Context) (PollResult, error) {
	if !e.inflight.CompareAndSwap(false, true) {
		metrics.Polls.WithLabelValues("skipped").Inc()
		return PollResult{}, ErrPollInFlight
	}
	defer e.inflight.Store(false)

	if e.isStopped() {
		return PollResult{}, ErrStopped
	}

	alerts, err := e.fetcher.Fetch(ctx)
	if err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		return PollResult{}, err
	}

	now := e.opts.Clock()

	e.mu.Lock()
	if e.stopped || ctx.Err() != nil {
		e.mu.Unlock()
		metrics.Polls.WithLabelValues("discarded").Inc()
		if ctx.Err() != nil {
			return PollResult{}, ctx.Err()
		}
		return PollResult{}, ErrStopped
	}

	res := PollResult{PrevLen: len(e.alerts), Len: len(alerts)}
	res.Arrivals, e.lastSeq = Detect(e.opts.Policy, len(e.alerts), e.lastSeq, alerts)
	e.alerts = alerts
	e.state = view.Build(alerts, e.opts.Filter, now)
	st := e.state
	listeners := append([]func(view.State){}, e.listeners...)
	e.mu.Unlock()

	metrics.Polls.WithLabelValues("ok").Inc()

	for _, i := range res.Arrivals {
		a := alerts[i]
		if !a.IsHigh() {
			continue
		}
		res.Escalated = append(res.Escalated, i)
		if e.escalator != nil {
			e.escalator.Escalate(ctx, escalation.Event{Alert: a, Index: i, DetectedAt: now})
		}
	}

	for _, fn := range listeners {
		fn(st)
	}

	if len(res.Arrivals) > 0 {
		slog.Debug("poll applied", "prev_len", res.PrevLen, "len", res.Len, "arrivals", len(res.Arrivals), "escalated", len(res.Escalated))
	}
	return res, nil
}

// SetFilter narrows the displayed rows. It never affects delta detection.
func (e *Engine) SetFilter(f view.Filter) {
	e.mu.Lock()
	e.opts.Filter = f
	e.state = view.Build(e.alerts, f, e.state.FetchedAt)
	st := e.state
	listeners := append([]func(view.State){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func (e *Engine) View() view.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Alerts returns the alerts from the last applied poll.
func (e *Engine) Alerts() []models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// Stop halts polling. A fetch still in flight is cancelled, and its result is
// discarded if it arrives anyway.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.cancelRun != nil {
		e.cancelRun()
	}
}

func (e *Engine) isStopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopped
}
