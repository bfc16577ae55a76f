// Package status delivers best-effort run notifications to external sinks.
package status

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

// Sink delivers one event. Implementations must honour ctx cancellation.
type Sink interface {
	Send(ctx context.Context, ev *models.StatusEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Send(context.Context, *models.StatusEvent) error { return nil }

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, ev *models.StatusEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the sink described by cfg: HTTP when a backend URL is set,
// NATS when a server URL is set, both when both are. The returned close
// function releases the NATS connection.
func FromConfig(st config.StatusConfig, nc config.NATSConfig) (Sink, func() error, error) {
	var sinks MultiSink
	closeFn := func() error { return nil }

	if st.BackendURL != "" {
		sinks = append(sinks, NewHTTPSink(st.BackendURL, st.Secret, nil))
	}
	if nc.URL != "" {
		ns, err := NewNATSSink(nc.URL, nc.Subject, nc.ConnectTimeout)
		if err != nil {
			return nil, closeFn, err
		}
		sinks = append(sinks, ns)
		closeFn = ns.Close
	}

	switch len(sinks) {
	case 0:
		slog.Warn("no status backend configured, status events are discarded")
		return Nop{}, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	}
	return sinks, closeFn, nil
}
