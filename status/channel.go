package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
)

// Channel sends events without blocking the caller. Each event is attempted
// once, bounded by the timeout; failures are logged and counted, never returned.
type Channel struct {
	sink    Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewChannel wraps sink. A nil sink discards events.
func NewChannel(sink Sink, timeout time.Duration) *Channel {
	if sink == nil {
		sink = Nop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Channel{sink: sink, timeout: timeout}
}

// Emit sends a lifecycle event for correlationID. payload is the result for
// success events and the error message for error events.
func (c *Channel) Emit(correlationID, status string, payload any) {
	ev := &models.StatusEvent{CorrelationID: correlationID, Kind: models.KindStatus, Status: status}
	switch status {
	case models.StatusError:
		if msg, ok := payload.(string); ok {
			ev.Error = msg
		} else if err, ok := payload.(error); ok {
			ev.Error = models.MessageOf(err)
		}
	case models.StatusProgress:
		if p, ok := payload.(models.Progress); ok {
			ev.Progress = &p
		}
	default:
		ev.Result = payload
	}
	c.send(ev)
}

// EmitRecord streams one enriched record.
func (c *Channel) EmitRecord(correlationID string, record models.Record) {
	c.send(&models.StatusEvent{
		CorrelationID: correlationID,
		Kind:          models.KindEnrichUpdate,
		EnrichedPlace: record,
	})
}

func (c *Channel) send(ev *models.StatusEvent) {
	if ev.CorrelationID == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := c.sink.Send(ctx, ev)
		metrics.RecordStatusEvent(ev.Kind, err == nil)
		if err != nil {
			de := models.NewScrapeError(models.ErrCodeDelivery, "status delivery failed", err)
			slog.Warn("status event not delivered",
				"correlation_id", ev.CorrelationID,
				"kind", ev.Kind,
				"status", ev.Status,
				"error", de,
			)
			return
		}
		slog.Debug("status event delivered", "correlation_id", ev.CorrelationID, "kind", ev.Kind, "status", ev.Status)
	}()
}

// Flush waits until in-flight sends finish or ctx ends.
func (c *Channel) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
