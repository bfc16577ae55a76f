// Package dispatcher routes a task to its extractor, owns the task's browser
// session and converts every outcome into a TaskResult.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/proxy"
	"github.com/use-agent/harvest/scheduler"
)

// Session is the per-task browser owner handed to extractors.
type Session interface {
	Browser(opts browser.ContextOptions) extractor.Browser
	Cleanup() error
}

// SessionFactory creates a fresh Session. It is called once per dispatched
// task, after routing and validation succeeded.
type SessionFactory func() Session

// BrowserSessions returns a factory of rod-backed sessions. Chromium is only
// launched when an extractor first renders a page.
func BrowserSessions(bc config.BrowserConfig, nc config.NavigationConfig, proxies proxy.Selector) SessionFactory {
	return func() Session {
		return rodSession{browser.NewSession(bc, nc, proxies)}
	}
}

type rodSession struct{ *browser.Session }

func (s rodSession) Browser(opts browser.ContextOptions) extractor.Browser {
	return s.Pages(opts)
}

// Status receives lifecycle and per-record events. *status.Channel implements it.
type Status interface {
	Emit(correlationID, status string, payload any)
	EmitRecord(correlationID string, record models.Record)
}

// Deps are the long-lived collaborators shared by every dispatched task.
type Deps struct {
	Sessions  SessionFactory
	Status    Status
	Scheduler *scheduler.Scheduler
	Contacts  extractor.ContactFinder
}

// Dispatcher runs one task at a time per call; it is safe for concurrent use.
type Dispatcher struct {
	registry *extractor.Registry
	deps     Deps
}

// New returns a dispatcher over registry.
func New(registry *extractor.Registry, deps Deps) *Dispatcher {
	return &Dispatcher{registry: registry, deps: deps}
}

// Registry returns the actor registry.
func (d *Dispatcher) Registry() *extractor.Registry { return d.registry }

// Option configures a single Dispatch call.
type Option func(*callOptions)

type callOptions struct {
	progress models.ProgressFunc
}

// WithProgress forwards extractor progress to fn.
func WithProgress(fn models.ProgressFunc) Option {
	return func(o *callOptions) { o.progress = fn }
}

// Dispatch runs actorID on input and always returns a result; errors and
// panics from the extractor become an error payload.
func (d *Dispatcher) Dispatch(ctx context.Context, actorID string, input map[string]any, correlationID string, opts ...Option) models.TaskResult {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	log := slog.With("actor", actorID, "run_id", correlationID)

	d.emit(correlationID, models.StatusStarted, nil)

	info, factory, ok := d.registry.Lookup(actorID)
	if !ok {
		// Unregistered ids share one metric label.
		return d.fail(log, "unknown", correlationID, start, models.UnknownActorError(actorID), "")
	}
	in := extractor.Input(input)
	if in == nil {
		in = extractor.Input{}
	}
	if err := extractor.Validate(info, in); err != nil {
		return d.fail(log, actorID, correlationID, start, err, "")
	}

	log.Info("task started")
	records, trace, err := d.run(ctx, factory, in, correlationID, d.progress(log, correlationID, o.progress))
	if err != nil {
		if trace == "" {
			trace = fmt.Sprintf("%+v", err)
		}
		return d.fail(log, actorID, correlationID, start, err, trace)
	}

	res := models.SuccessResult(records)
	metrics.RecordTask(actorID, "success", time.Since(start))
	log.Info("task finished", "records", len(res.Data), "duration", time.Since(start).Round(time.Millisecond))
	d.emit(correlationID, models.StatusSuccess, res)
	return res
}

// run owns the session for the duration of one Scrape call.
func (d *Dispatcher) run(ctx context.Context, factory extractor.Factory, in extractor.Input, correlationID string, progress models.ProgressFunc) (records []models.Record, trace string, err error) {
	var session Session
	if d.deps.Sessions != nil {
		session = d.deps.Sessions()
		defer func() {
			if cerr := session.Cleanup(); cerr != nil {
				slog.Warn("session cleanup failed", "run_id", correlationID, "error", cerr)
			}
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("extractor panicked: %v", r), nil)
			trace = string(debug.Stack())
		}
	}()

	deps := extractor.Deps{
		Scheduler:     d.deps.Scheduler,
		Contacts:      d.deps.Contacts,
		CorrelationID: correlationID,
	}
	if session != nil {
		deps.Browser = session.Browser
	}
	if d.deps.Status != nil {
		deps.Status = d.deps.Status
	}

	records, err = factory(deps).Scrape(ctx, in, progress)
	if err != nil {
		return nil, "", classify(ctx, err)
	}
	return records, "", nil
}

// classify maps context errors to their task-level codes.
func classify(ctx context.Context, err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "task exceeded its time limit", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return models.NewScrapeError(models.ErrCodeCancelled, "task cancelled", err)
	}
	return err
}

func (d *Dispatcher) fail(log *slog.Logger, actorID, correlationID string, start time.Time, err error, trace string) models.TaskResult {
	outcome := "error"
	if models.IsCode(err, models.ErrCodeCancelled) {
		outcome = "cancelled"
	}
	metrics.RecordTask(actorID, outcome, time.Since(start))
	log.Error("task failed", "code", models.CodeOf(err), "error", err)
	d.emit(correlationID, models.StatusError, err)
	return models.ErrorResult(err, trace)
}

func (d *Dispatcher) progress(log *slog.Logger, correlationID string, forward models.ProgressFunc) models.ProgressFunc {
	return func(p models.Progress) {
		log.Debug("task progress", "processed", p.Processed, "total", p.Total, "message", p.Message)
		forward.Report(p.Processed, p.Total, p.Message)
		d.emit(correlationID, models.StatusProgress, p)
	}
}

func (d *Dispatcher) emit(correlationID, status string, payload any) {
	if d.deps.Status != nil {
		d.deps.Status.Emit(correlationID, status, payload)
	}
}
