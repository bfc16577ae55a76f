// Package scheduler runs the discovery, batched extraction, filtering and
// aggregation loop shared by every extractor.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"golang.org/x/sync/errgroup"
)

// DefaultTermKey is the field each record is tagged with.
const DefaultTermKey = "searchTerm"

// ExtractFunc extracts one target. A nil record with a nil error drops the
// target silently (required fields were missing).
type ExtractFunc func(ctx context.Context, target string) (models.Record, error)

// ErrorFunc turns a failed extraction into the record kept for that target.
// Returning nil drops the target.
type ErrorFunc func(target string, err error) models.Record

// FilterFunc decides whether an extracted record is kept.
type FilterFunc func(models.Record) bool

// Job describes one extractor run.
type Job struct {
	Terms      []string
	MaxResults int // per term
	MaxPages   int

	Discover PageFunc
	Extract  ExtractFunc
	Keep     FilterFunc
	OnError  ErrorFunc

	// TermKey defaults to DefaultTermKey.
	TermKey string

	// BatchSize and BatchDelay override the scheduler defaults when set.
	BatchSize  int
	BatchDelay time.Duration
}

// Scheduler executes jobs. It holds no per-job state and may be shared.
type Scheduler struct {
	BatchSize  int
	BatchDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Scheduler configured from cfg.
func New(cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{BatchSize: cfg.BatchSize, BatchDelay: cfg.BatchDelay, sleep: sleepCtx}
}

// DefaultErrorRecord tags the target with the error message.
func DefaultErrorRecord(target string, err error) models.Record {
	return models.Record{"target": target, "error": err.Error()}
}

// Run executes job. Per-target failures never fail the run; the returned
// error is non-nil only when the context ended (records gathered so far are
// still returned) or when discovery failed for every term.
func (s *Scheduler) Run(ctx context.Context, job Job, progress models.ProgressFunc) ([]models.Record, error) {
	if job.Discover == nil || job.Extract == nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "scheduler job needs Discover and Extract", nil)
	}
	key := job.TermKey
	if key == "" {
		key = DefaultTermKey
	}

	var (
		all            []models.Record
		processed      int
		total          int
		discoveryFails int
		lastErr        error
	)

	for _, term := range job.Terms {
		if SoftExpired(ctx) {
			slog.Warn("soft time limit reached, returning partial results", "term", term, "records", len(all))
			break
		}

		targets, err := Discover(ctx, term, job.MaxResults, job.MaxPages, job.Discover)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			discoveryFails++
			lastErr = err
			slog.Warn("discovery failed", "term", term, "error", err)
			progress.Report(processed, total, fmt.Sprintf("discovery failed for %q", term))
			continue
		}
		total += len(targets)
		slog.Info("discovery complete", "term", term, "targets", len(targets))

		base := processed
		records := s.RunBatches(ctx, targets, job, func(done int) {
			progress.Report(base+done, total, fmt.Sprintf("extracted %d/%d for %q", done, len(targets), term))
		})
		processed += len(targets)

		for _, rec := range records {
			if job.Keep != nil && rec["error"] == nil && !job.Keep(rec) {
				continue
			}
			rec[key] = term
			all = append(all, rec)
		}
		progress.Report(processed, total, fmt.Sprintf("finished %q", term))

		if err := ctx.Err(); err != nil {
			return all, err
		}
	}

	if len(job.Terms) > 0 && discoveryFails == len(job.Terms) {
		return all, lastErr
	}
	if all == nil {
		all = []models.Record{}
	}
	return all, nil
}

// RunBatches extracts targets in sequential batches; within a batch every
// target runs concurrently. onBatch receives the number of targets finished
// after each batch. Output order follows targets; dropped targets leave no gap.
func (s *Scheduler) RunBatches(ctx context.Context, targets []string, job Job, onBatch func(done int)) []models.Record {
	size := job.BatchSize
	if size <= 0 {
		size = s.BatchSize
	}
	if size <= 0 {
		size = 1
	}
	delay := job.BatchDelay
	if delay == 0 {
		delay = s.BatchDelay
	}
	onErr := job.OnError
	if onErr == nil {
		onErr = DefaultErrorRecord
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	results := make([]models.Record, len(targets))
	for start := 0; start < len(targets); start += size {
		if start > 0 {
			if SoftExpired(ctx) {
				slog.Warn("soft time limit reached, skipping remaining batches", "done", start, "total", len(targets))
				break
			}
			if ctx.Err() != nil {
				break
			}
			if delay > 0 && sleep(ctx, delay) != nil {
				break
			}
		}
		end := min(start+size, len(targets))

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = extractOne(ctx, targets[i], job.Extract, onErr)
				return nil
			})
		}
		_ = g.Wait()

		metrics.RecordBatch()
		slog.Debug("batch complete", "from", start, "to", end, "total", len(targets))
		if onBatch != nil {
			onBatch(end)
		}
	}

	kept := make([]models.Record, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			kept = append(kept, rec)
		}
	}
	return kept
}

// extractOne isolates a single target: errors and panics become that target's record.
func extractOne(ctx context.Context, target string, extract ExtractFunc, onErr ErrorFunc) (rec models.Record) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction panicked", "target", target, "panic", r)
			rec = onErr(target, fmt.Errorf("extraction panicked: %v", r))
		}
	}()
	rec, err := extract(ctx, target)
	if err != nil {
		slog.Warn("extraction failed", "target", target, "error", err)
		return onErr(target, err)
	}
	return rec
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
