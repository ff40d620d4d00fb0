// Package telemetry exposes Prometheus metrics for the strategy loop.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the strategy core.
type Metrics struct {
	// Sequencer
	SequencerState  *prometheus.GaugeVec
	MatchElapsedSec prometheus.Gauge

	// Trajectory outcomes
	OutcomesTotal  *prometheus.CounterVec
	TrajectoryWait prometheus.Histogram

	// Recovery
	AvoidanceTotal   prometheus.Counter
	AbandonmentTotal *prometheus.CounterVec

	// Objectives
	GlassesClaimed prometheus.Counter
	GiftsCompleted prometheus.Counter
}

// NewMetrics creates and registers the strategy metrics.
//
// Registration runs once per process behind sync.Once so repeated calls
// (tests, restarts of the match loop) never trip the duplicate-collector
// panic. All metrics are prefixed with "strat_".
//
// Metrics:
//   - strat_sequencer_state{state} - 1 for the active state, 0 otherwise
//   - strat_match_elapsed_seconds - elapsed match time
//   - strat_outcomes_total{class} - trajectory outcomes by class
//   - strat_trajectory_wait_seconds - time spent waiting on trajectories
//   - strat_avoidance_total - avoidance maneuvers run
//   - strat_abandonment_total{kind} - objectives abandoned, by target kind
//   - strat_glasses_claimed_total - glasses claimed
//   - strat_gifts_completed_total - gifts completed
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SequencerState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "strat_sequencer_state",
					Help: "Active sequencer state (1 for current, 0 otherwise)",
				},
				[]string{"state"},
			),

			MatchElapsedSec: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "strat_match_elapsed_seconds",
					Help: "Elapsed match time in seconds",
				},
			),

			OutcomesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strat_outcomes_total",
					Help: "Total trajectory outcomes by recovery class",
				},
				[]string{"class"}, // "success", "retryable", "invalid", "abort"
			),

			TrajectoryWait: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "strat_trajectory_wait_seconds",
					Help:    "Time spent blocked on trajectory completion",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
				},
			),

			AvoidanceTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "strat_avoidance_total",
					Help: "Total avoidance maneuvers performed",
				},
			),

			AbandonmentTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strat_abandonment_total",
					Help: "Total objectives abandoned after retry exhaustion",
				},
				[]string{"kind"}, // "glass" or "gift"
			),

			GlassesClaimed: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "strat_glasses_claimed_total",
					Help: "Total glasses claimed this process",
				},
			),

			GiftsCompleted: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "strat_gifts_completed_total",
					Help: "Total gifts completed this process",
				},
			),
		}
	})
	return globalMetrics
}

// SetState marks state as current on the state gauge and clears the others.
func (m *Metrics) SetState(states []string, current string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1.0
		}
		m.SequencerState.WithLabelValues(s).Set(v)
	}
}
