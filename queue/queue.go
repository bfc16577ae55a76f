// Package queue runs dispatched tasks on a fixed pool of workers and tracks
// their lifecycle in a Store.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
)

// Failure messages recorded on tasks that did not complete normally.
const (
	MsgCancelled  = "task cancelled"
	MsgHardLimit  = "hard time limit exceeded"
	MsgWorkerLost = "worker lost"
	MsgShutdown   = "worker shut down"
)

// RunFunc executes one task and always returns its result payload.
type RunFunc func(ctx context.Context, t *models.Task, progress models.ProgressFunc) models.TaskResult

// Queue accepts tasks and hands each to exactly one worker.
type Queue struct {
	cfg   config.QueueConfig
	store Store
	run   RunFunc
	now   func() time.Time

	jobs    chan string
	done    chan struct{}
	base    context.Context
	abort   context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
	// submitting is held shared by Submit so Shutdown can wait out in-flight sends.
	submitting sync.RWMutex

	// mu serializes state transitions so Cancel and the claiming worker never race.
	mu        sync.Mutex
	running   map[string]context.CancelFunc
	cancelled map[string]bool

	busy    atomic.Int32
	pending atomic.Int32
}

// New returns a stopped queue; call Start to launch the workers.
func New(cfg config.QueueConfig, store Store, run RunFunc) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Backlog < 1 {
		cfg.Backlog = 1000
	}
	base, abort := context.WithCancel(context.Background())
	return &Queue{
		cfg:       cfg,
		store:     store,
		run:       run,
		now:       time.Now,
		jobs:      make(chan string, cfg.Backlog),
		done:      make(chan struct{}),
		base:      base,
		abort:     abort,
		running:   make(map[string]context.CancelFunc),
		cancelled: make(map[string]bool),
	}
}

// Start recovers tasks left over from a previous process and launches the
// workers. Tasks found STARTED are failed; PENDING ones are queued again.
func (q *Queue) Start() error {
	if !q.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := q.recover(); err != nil {
		return err
	}
	for range q.cfg.Workers {
		q.wg.Add(1)
		go q.worker()
	}
	slog.Info("task queue started", "workers", q.cfg.Workers, "backlog", q.cfg.Backlog)
	return nil
}

func (q *Queue) recover() error {
	lost, err := q.store.ListByState(models.StateStarted)
	if err != nil {
		return err
	}
	for _, t := range lost {
		t.Error = MsgWorkerLost
		if err := t.Transition(models.StateFailure, q.now()); err == nil {
			_ = q.store.Save(t)
			slog.Warn("task lost by previous worker", "task_id", t.ID, "actor", t.ActorID)
		}
	}

	waiting, err := q.store.ListByState(models.StatePending)
	if err != nil {
		return err
	}
	for _, t := range waiting {
		select {
		case q.jobs <- t.ID:
			q.pending.Add(1)
		default:
			t.Error = "queue full at restart"
			_ = t.Transition(models.StateFailure, q.now())
			_ = q.store.Save(t)
		}
	}
	if len(waiting) > 0 {
		slog.Info("requeued pending tasks", "count", len(waiting))
	}
	metrics.SetQueueDepth(int(q.pending.Load()))
	return nil
}

// Submit stores a PENDING task and queues it. When correlationID is set it
// becomes the task id. Submit blocks while the backlog is full.
func (q *Queue) Submit(ctx context.Context, actorID string, input map[string]any, correlationID string) (models.SubmitResponse, error) {
	q.submitting.RLock()
	defer q.submitting.RUnlock()
	if q.closed.Load() {
		return models.SubmitResponse{}, models.NewScrapeError(models.ErrCodeInternal, "queue is shutting down", nil)
	}
	id := correlationID
	if id == "" {
		id = uuid.NewString()
	}

	q.mu.Lock()
	if prev, err := q.store.Get(id); err == nil && !prev.State.Terminal() {
		q.mu.Unlock()
		return models.SubmitResponse{}, models.NewScrapeError(models.ErrCodeInvalidInput, "task "+id+" is already "+string(prev.State), nil)
	}
	t := &models.Task{
		ID:            id,
		ActorID:       actorID,
		Input:         input,
		CorrelationID: correlationID,
		State:         models.StatePending,
		CreatedAt:     q.now(),
	}
	err := q.store.Save(t)
	q.mu.Unlock()
	if err != nil {
		return models.SubmitResponse{}, err
	}

	q.pending.Add(1)
	select {
	case q.jobs <- id:
	case <-ctx.Done():
		q.pending.Add(-1)
		q.failPending(id, MsgCancelled)
		return models.SubmitResponse{}, ctx.Err()
	case <-q.done:
		q.pending.Add(-1)
		q.failPending(id, MsgShutdown)
		return models.SubmitResponse{}, models.NewScrapeError(models.ErrCodeInternal, "queue is shutting down", nil)
	}
	metrics.SetQueueDepth(int(q.pending.Load()))
	slog.Info("task queued", "task_id", id, "actor", actorID)
	return models.SubmitResponse{TaskID: id, Status: "queued"}, nil
}

// Status returns the current snapshot of a task.
func (q *Queue) Status(id string) (models.TaskStatusResponse, error) {
	t, err := q.store.Get(id)
	if err != nil {
		return models.TaskStatusResponse{}, err
	}
	return statusOf(t), nil
}

// Cancel fails a PENDING task immediately, or cancels the context of a
// STARTED one; the worker then records the failure. Cancelling a finished
// task is a no-op.
func (q *Queue) Cancel(id string) (models.TaskStatusResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.store.Get(id)
	if err != nil {
		return models.TaskStatusResponse{}, err
	}
	switch t.State {
	case models.StatePending:
		t.Error = MsgCancelled
		if err := t.Transition(models.StateFailure, q.now()); err != nil {
			return models.TaskStatusResponse{}, err
		}
		if err := q.store.Save(t); err != nil {
			return models.TaskStatusResponse{}, err
		}
		slog.Info("pending task cancelled", "task_id", id)
	case models.StateStarted:
		if cancel, ok := q.running[id]; ok {
			q.cancelled[id] = true
			cancel()
			slog.Info("running task cancelled", "task_id", id)
		}
	}
	return statusOf(t), nil
}

// Stats reports worker occupancy and backlog.
func (q *Queue) Stats() models.QueueStats {
	return models.QueueStats{
		Workers: q.cfg.Workers,
		Busy:    int(q.busy.Load()),
		Pending: int(q.pending.Load()),
	}
}

// Shutdown stops accepting tasks and waits for running ones. When ctx ends
// first, running tasks are cancelled and Shutdown waits for them to unwind.
// Tasks still queued are failed, unless the store is durable, in which case
// they stay PENDING and are picked up by the next Start.
func (q *Queue) Shutdown(ctx context.Context) error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(q.done)
	// Wait out Submit calls that passed the closed check.
	q.submitting.Lock()
	q.submitting.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		slog.Warn("shutdown deadline reached, cancelling running tasks")
		q.abort()
		<-finished
		err = ctx.Err()
	}
	q.abort()
	q.drain()
	return err
}

// drain empties the backlog once every worker has exited.
func (q *Queue) drain() {
	durable := false
	if d, ok := q.store.(interface{ Durable() bool }); ok {
		durable = d.Durable()
	}
	left := 0
	for {
		select {
		case id := <-q.jobs:
			q.pending.Add(-1)
			left++
			if !durable {
				q.failPending(id, MsgShutdown)
			}
		default:
			metrics.SetQueueDepth(int(q.pending.Load()))
			if left > 0 {
				slog.Info("queued tasks left at shutdown", "count", left, "kept", durable)
			}
			return
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		// A closed queue takes no further jobs even when some are waiting.
		select {
		case <-q.done:
			return
		default:
		}
		select {
		case <-q.done:
			return
		case id := <-q.jobs:
			metrics.SetQueueDepth(int(q.pending.Add(-1)))
			q.execute(id)
		}
	}
}

// claim moves a PENDING task to STARTED and registers its cancel func.
func (q *Queue) claim(id string) (*models.Task, context.Context, context.CancelFunc, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.store.Get(id)
	if err != nil || t.State != models.StatePending {
		return nil, nil, nil, false
	}
	if err := t.Transition(models.StateStarted, q.now()); err != nil {
		return nil, nil, nil, false
	}
	if err := q.store.Save(t); err != nil {
		slog.Error("failed to persist task start", "task_id", id, "error", err)
	}

	ctx, cancel := context.WithCancel(q.base)
	if q.cfg.HardTimeLimit > 0 {
		ctx, cancel = contextWithTimeout(ctx, cancel, q.cfg.HardTimeLimit)
	}
	if q.cfg.SoftTimeLimit > 0 {
		ctx = scheduler.WithSoftDeadline(ctx, q.now().Add(q.cfg.SoftTimeLimit))
	}
	q.running[id] = cancel
	return t, ctx, cancel, true
}

func (q *Queue) execute(id string) {
	t, ctx, cancel, ok := q.claim(id)
	if !ok {
		return
	}
	defer cancel()
	q.busy.Add(1)
	defer q.busy.Add(-1)

	progress := func(p models.Progress) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if t.State != models.StateStarted {
			return
		}
		t.Progress = &p
		_ = q.store.Save(t)
	}

	res := q.run(ctx, t, progress)

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
	wasCancelled := q.cancelled[id]
	delete(q.cancelled, id)

	switch {
	case wasCancelled:
		t.Error = MsgCancelled
		_ = t.Transition(models.StateFailure, q.now())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		t.Error = MsgHardLimit
		_ = t.Transition(models.StateFailure, q.now())
	case errors.Is(q.base.Err(), context.Canceled):
		t.Error = MsgShutdown
		_ = t.Transition(models.StateFailure, q.now())
	default:
		t.Result = &res
		_ = t.Transition(models.StateSuccess, q.now())
	}
	if err := q.store.Save(t); err != nil {
		slog.Error("failed to persist task result", "task_id", id, "error", err)
	}
	slog.Info("task done", "task_id", id, "actor", t.ActorID, "state", t.State,
		"duration", t.FinishedAt.Sub(t.StartedAt).Round(time.Millisecond))
}

// failPending records msg on a task that never reached a worker.
func (q *Queue) failPending(id, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, err := q.store.Get(id)
	if err != nil {
		return
	}
	t.Error = msg
	if t.Transition(models.StateFailure, q.now()) == nil {
		_ = q.store.Save(t)
	}
}

// contextWithTimeout layers a deadline over ctx; the returned cancel releases both.
func contextWithTimeout(ctx context.Context, parent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	tctx, tcancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		tcancel()
		parent()
	}
}

func statusOf(t *models.Task) models.TaskStatusResponse {
	return models.TaskStatusResponse{
		TaskID:   t.ID,
		State:    t.State,
		Result:   t.Result,
		Error:    t.Error,
		Progress: t.Progress,
	}
}
