package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

// Metrics holds the indexer's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastSuccess      prometheus.Gauge
	DistinctEntities *prometheus.GaugeVec
	PagesTotal       *prometheus.CounterVec
	RowsUpserted     *prometheus.CounterVec
	SkippedIDs       *prometheus.CounterVec
	DimensionsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers every collector on registry. A nil registry
// gets a fresh one, which keeps tests independent of the global default.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_run_duration_seconds",
				Help:    "Wall time of a full pipeline run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
		),
		DistinctEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexer_distinct_entities",
				Help: "Distinct facet values reported for a dimension in the last run",
			},
			[]string{"dimension"},
		),
		PagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_pages_total",
				Help: "Facet pages fetched and committed",
			},
			[]string{"dimension"},
		),
		RowsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_rows_upserted_total",
				Help: "Item rows inserted or updated",
			},
			[]string{"dimension"},
		),
		SkippedIDs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_skipped_ids_total",
				Help: "Facet values dropped because they are not valid item ids",
			},
			[]string{"dimension"},
		),
		DimensionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_dimensions_total",
				Help: "Dimension runs by outcome",
			},
			[]string{"dimension", "outcome"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastSuccess,
		m.DistinctEntities,
		m.PagesTotal,
		m.RowsUpserted,
		m.SkippedIDs,
		m.DimensionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
