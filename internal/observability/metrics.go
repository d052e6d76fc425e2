package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "downscale"

// Metrics holds the Prometheus counters, histograms, and gauges for the downscaling pipeline.
type Metrics struct {
	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	SeriesEmitted   prometheus.Counter
	MemberFailures  prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Data quality.
	NullCells *prometheus.CounterVec // labels: variable={Rain,Snow,AirTemp,...}
	DataGaps  *prometheus.CounterVec // labels: kind={incomplete_day,zero_mean,interpolation,anchor_missing}

	StageDuration *prometheus.HistogramVec // labels: stage={load,transform,emit}

	// Solar kernel cache.
	SolarKernelCache *prometheus.CounterVec // labels: result={hit,miss}
}

var stageBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Issue-date runs by outcome.",
		}, []string{"outcome"}),
		SeriesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_emitted_total",
			Help:      "Total output series emitted.",
		}),
		MemberFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_failures_total",
			Help:      "Forecast members dropped from a run.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a batch is running, 0 otherwise.",
		}),
		NullCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "null_cells_total",
			Help:      "Missing output cells written, by column.",
		}, []string{"variable"}),
		DataGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_gaps_total",
			Help:      "Non-fatal data gaps found while processing, by kind.",
		}, []string{"kind"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage for one issue date.",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
		SolarKernelCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solar_kernel_cache_total",
			Help:      "Clear-sky kernel cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.Runs,
		m.SeriesEmitted,
		m.MemberFailures,
		m.PipelineRunning,
		m.NullCells,
		m.DataGaps,
		m.StageDuration,
		m.SolarKernelCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Runs:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "runs_total"}, []string{"outcome"}),
		SeriesEmitted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "series_emitted_total"}),
		MemberFailures:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "member_failures_total"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		NullCells:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "null_cells_total"}, []string{"variable"}),
		DataGaps:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "data_gaps_total"}, []string{"kind"}),
		StageDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "stage_duration_seconds"}, []string{"stage"}),
		SolarKernelCache: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "solar_kernel_cache_total"}, []string{"result"}),
	}
}
