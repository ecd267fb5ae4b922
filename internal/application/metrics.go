package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sync engine's Prometheus instruments.
type Metrics struct {
	RecordsSynced  *prometheus.CounterVec
	RecordFailures *prometheus.CounterVec
	StageFailures  *prometheus.CounterVec
	RunsStarted    *prometheus.CounterVec
	RunsSkipped    *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	ActiveRuns     prometheus.Gauge
}

// NewMetrics registers the sync engine's instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsSynced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_records_synced_total",
			Help: "Records upserted into the local mirror",
		}, []string{"tenant", "entity"}),
		RecordFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_record_failures_total",
			Help: "Records skipped because they could not be mapped or stored",
		}, []string{"tenant", "entity"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_stage_failures_total",
			Help: "Entity stages terminated by a fetch failure",
		}, []string{"tenant", "entity"}),
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_runs_started_total",
			Help: "Tenant sync runs started",
		}, []string{"mode"}),
		RunsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_runs_skipped_total",
			Help: "Sync triggers skipped because an equivalent run was active",
		}, []string{"mode"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of tenant sync runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"mode"}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sync_active_runs",
			Help: "Tenant sync runs currently in flight",
		}),
	}
}
