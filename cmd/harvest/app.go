package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/harvest/actors"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/dispatcher"
	"github.com/use-agent/harvest/enrich"
	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/proxy"
	"github.com/use-agent/harvest/scheduler"
	"github.com/use-agent/harvest/status"
)

// app holds the long-lived collaborators shared by serve and run.
type app struct {
	cfg        *config.Config
	registry   *extractor.Registry
	proxies    *proxy.Pool
	status     *status.Channel
	closeSink  func() error
	enricher   *enrich.WebsiteEnricher
	dispatcher *dispatcher.Dispatcher
}

func newApp(cfg *config.Config) (*app, error) {
	pool, err := proxy.NewPool(cfg.Proxy.URLs)
	if err != nil {
		slog.Warn("ignoring invalid proxy entries", "error", err, "loaded", pool.Len())
	}

	sink, closeSink, err := status.FromConfig(cfg.Status, cfg.NATS)
	if err != nil {
		return nil, err
	}
	channel := status.NewChannel(sink, cfg.Status.Timeout)

	enrichProxy := ""
	if d, ok := pool.GetRotatingProxy(proxy.StrategyBest); ok {
		enrichProxy = proxy.FormatURL(d)
	}
	enricher := enrich.NewWebsiteEnricher(cfg.Enrich, enrichProxy)

	registry := actors.Registry(cfg)
	d := dispatcher.New(registry, dispatcher.Deps{
		Sessions:  dispatcher.BrowserSessions(cfg.Browser, cfg.Navigation, pool),
		Status:    channel,
		Scheduler: scheduler.New(cfg.Scheduler),
		Contacts:  enricher,
	})

	slog.Info("harvest initialised",
		"actors", registry.Len(),
		"proxies", pool.Len(),
		"status_backend", cfg.Status.BackendURL != "",
		"nats", cfg.NATS.URL != "",
	)
	return &app{
		cfg:        cfg,
		registry:   registry,
		proxies:    pool,
		status:     channel,
		closeSink:  closeSink,
		enricher:   enricher,
		dispatcher: d,
	}, nil
}

// runTask adapts the dispatcher to the queue's worker contract.
func (a *app) runTask(ctx context.Context, t *models.Task, progress models.ProgressFunc) models.TaskResult {
	return a.dispatcher.Dispatch(ctx, t.ActorID, t.Input, t.CorrelationID, dispatcher.WithProgress(progress))
}

// close waits for in-flight status deliveries, then releases clients.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.status.Flush(ctx); err != nil {
		slog.Warn("status events still in flight at exit", "error", err)
		errs = append(errs, err)
	}
	errs = append(errs, a.enricher.Close(), a.closeSink())
	return errors.Join(errs...)
}
