// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harvest"

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_total",
		Help:      "Tasks finished, by actor and outcome (success, error, cancelled).",
	}, []string{"actor", "outcome"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Wall-clock duration of dispatched tasks.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"actor"})

	navigationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "navigation_attempts_total",
		Help:      "Page navigation attempts by outcome (ok, bad_status, error).",
	}, []string{"outcome"})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_total",
		Help:      "Extraction batches completed.",
	})

	statusEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_events_total",
		Help:      "Status sink deliveries by kind and result (delivered, failed).",
	}, []string{"kind", "result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Browser sessions currently holding a Chromium process.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks submitted but not yet claimed by a worker.",
	})

	enrichments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_total",
		Help:      "Enriched records by enrichment status.",
	}, []string{"status"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func RecordTask(actor, outcome string, d time.Duration) {
	tasksTotal.WithLabelValues(actor, outcome).Inc()
	taskDuration.WithLabelValues(actor).Observe(d.Seconds())
}

func RecordNavigation(outcome string) { navigationAttempts.WithLabelValues(outcome).Inc() }

func RecordBatch() { batchesTotal.Inc() }

func RecordStatusEvent(kind string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	statusEvents.WithLabelValues(kind, result).Inc()
}

func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }

func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

func RecordEnrichment(status string) { enrichments.WithLabelValues(status).Inc() }
