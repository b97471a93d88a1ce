package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sedif_runs_total",
			Help: "Total runs by outcome.",
		},
		[]string{"outcome"},
	)
	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sedif_run_duration_seconds",
			Help:    "Run duration by stage reached.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	lastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sedif_last_success_timestamp_seconds",
			Help: "Unix time of the last fully successful run.",
		},
	)
	ticksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sedif_ticks_skipped_total",
			Help: "Scheduled ticks skipped because a run was still in flight.",
		},
	)
)

func observeRun(outcome string, dur time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.WithLabelValues(outcome).Observe(dur.Seconds())
	if outcome == outcomeOK {
		lastSuccessTimestamp.SetToCurrentTime()
	}
}
