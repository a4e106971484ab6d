package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the event
// intelligence pipeline.
type Metrics struct {
	EventsIngested  prometheus.Counter
	EventsProcessed prometheus.Counter
	EventsRejected  prometheus.Counter
	DuplicateEvents prometheus.Counter
	AssemblyErrors  prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Per-event assembly timing.
	EventProcessingDuration prometheus.Histogram
	StageDuration           *prometheus.HistogramVec // labels: stage={extract,score,validate,persist}

	// Enrichment quality.
	ExtractionFallbacks prometheus.Counter
	ValidationOutcomes  *prometheus.CounterVec // labels: status={succeeded,degraded,skipped,none}
	AggregateLookups    *prometheus.CounterVec // labels: result={hit,recompute}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "events_ingested_total",
			Help:      "Total raw items read from the source topic.",
		}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "events_processed_total",
			Help:      "Total processed events persisted to the store.",
		}),
		EventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "events_rejected_total",
			Help:      "Total raw items rejected at normalization.",
		}),
		DuplicateEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "duplicate_events_total",
			Help:      "Total submissions that collapsed onto an already-stored event id.",
		}),
		AssemblyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "assembly_errors_total",
			Help:      "Total events whose assembly failed after normalization.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "event_intel",
			Name:      "pipeline_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		EventProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "event_intel",
			Name:      "event_processing_duration_seconds",
			Help:      "Duration of a complete normalize-extract-score-validate-persist cycle.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "event_intel",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual assembly stages.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"stage"}),
		ExtractionFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "extraction_fallbacks_total",
			Help:      "Total events annotated by the lexicon fallback after a model failure.",
		}),
		ValidationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "validation_outcomes_total",
			Help:      "Satellite validation outcomes per event by status.",
		}, []string{"status"}),
		AggregateLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "event_intel",
			Name:      "aggregate_lookups_total",
			Help:      "Region aggregate reads by cache result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.EventsIngested,
		m.EventsProcessed,
		m.EventsRejected,
		m.DuplicateEvents,
		m.AssemblyErrors,
		m.PipelineRunning,
		m.EventProcessingDuration,
		m.StageDuration,
		m.ExtractionFallbacks,
		m.ValidationOutcomes,
		m.AggregateLookups,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsIngested:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "event_intel", Name: "events_ingested_total"}),
		EventsProcessed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "event_intel", Name: "events_processed_total"}),
		EventsRejected:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "event_intel", Name: "events_rejected_total"}),
		DuplicateEvents:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "event_intel", Name: "duplicate_events_total"}),
		AssemblyErrors:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "event_intel", Name: "assembly_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "event_intel", Name: "pipeline_running"}),
		EventProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "event_intel", Name: "event_processing_duration_seconds"}),
		StageDuration:           prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "event_intel", Name: "stage_duration_seconds"}, []string{"stage"}),
		ExtractionFallbacks:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "event_intel", Name: "extraction_fallbacks_total"}),
		ValidationOutcomes:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "event_intel", Name: "validation_outcomes_total"}, []string{"status"}),
		AggregateLookups:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "event_intel", Name: "aggregate_lookups_total"}, []string{"result"}),
	}
}
