package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/use-agent/harvest/models"
)

// NATSSink publishes events on {subject}.{correlationId}.{kind}.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url. Reconnects are retried forever in the background.
func NewNATSSink(url, subject string, connectTimeout time.Duration) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = "harvest.runs"
	}
	if connectTimeout == 0 {
		connectTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(url,
		nats.Name("harvest"),
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Send(ctx context.Context, ev *models.StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("status: marshal event: %w", err)
	}
	return s.conn.Publish(Subject(s.subject, ev), data)
}

// Subject returns the NATS subject for ev under base.
func Subject(base string, ev *models.StatusEvent) string {
	return fmt.Sprintf("%s.%s.%s", base, ev.CorrelationID, kindPath(ev.Kind))
}

// Close drains pending publishes and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
