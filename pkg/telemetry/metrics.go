package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors fed from hub events.
type Metrics struct {
	registry *prometheus.Registry

	saves          prometheus.Counter
	saveFailures   prometheus.Counter
	ghostPrunes    prometheus.Counter
	migrations     prometheus.Counter
	rewrites       *prometheus.CounterVec
	streams        *prometheus.CounterVec
	fragments      *prometheus.CounterVec
	statusChanges  *prometheus.CounterVec
	recordsWritten prometheus.Counter
}

// NewMetrics registers the inkwell collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		saves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "document_saves_total",
			Help:      "Documents persisted to the local store.",
		}),
		saveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "document_save_failures_total",
			Help:      "Saves that could not be written to storage.",
		}),
		ghostPrunes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "ghost_entries_pruned_total",
			Help:      "Recents entries removed because their record was missing.",
		}),
		migrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "legacy_migrations_total",
			Help:      "Legacy single-document records migrated.",
		}),
		rewrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "rewrites_total",
			Help:      "Selection rewrites by outcome.",
		}, []string{"outcome"}),
		streams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "streams_total",
			Help:      "Completion streams by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fragments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "stream_fragments_total",
			Help:      "Text fragments received from completion streams.",
		}, []string{"provider"}),
		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "save_status_changes_total",
			Help:      "Autosave status transitions by target status.",
		}, []string{"status"}),
		recordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "inkwell",
			Name:      "storage_records_written_total",
			Help:      "Raw record writes observed on the SQLite store.",
		}),
	}
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Record updates collectors for a single event.
func (m *Metrics) Record(event Event) {
	if m == nil {
		return
	}
	switch event.Type {
	case EventDocumentSaved:
		m.saves.Inc()
	case EventDocumentSaveFailed:
		m.saveFailures.Inc()
	case EventGhostPruned:
		m.ghostPrunes.Inc()
	case EventDocumentMigrated:
		m.migrations.Inc()
	case EventRewriteCommitted:
		m.rewrites.WithLabelValues("committed").Inc()
	case EventRewriteFallback:
		m.rewrites.WithLabelValues("fallback").Inc()
	case EventModelStreamEnded:
		provider := dataString(event.Data, "provider")
		m.streams.WithLabelValues(provider, "ok").Inc()
		if n, ok := event.Data["fragments"].(int); ok && n > 0 {
			m.fragments.WithLabelValues(provider).Add(float64(n))
		}
	case EventModelStreamFailed:
		provider := dataString(event.Data, "provider")
		m.streams.WithLabelValues(provider, "error").Inc()
		if n, ok := event.Data["fragments"].(int); ok && n > 0 {
			m.fragments.WithLabelValues(provider).Add(float64(n))
		}
	case EventSaveStatusChanged:
		m.statusChanges.WithLabelValues(dataString(event.Data, "status")).Inc()
	case EventStorageRecord:
		if dataString(event.Data, "op") == "write" {
			m.recordsWritten.Inc()
		}
	}
}

// Run consumes hub events until ctx is done or the hub closes.
func (m *Metrics) Run(ctx context.Context, hub *Hub) {
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.Record(event)
		}
	}
}

func dataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
