// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_transitions_completed_total",
			Help: "Total number of committed transitions",
		},
		[]string{"type_id", "event"},
	)

	TransitionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_transitions_failed_total",
			Help: "Total number of refused or failed transitions",
		},
		[]string{"type_id", "event", "error_code"},
	)

	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_transition_duration_seconds",
			Help: "Duration of the full transition pipeline in seconds",
		},
		[]string{"type_id"},
	)

	ProviderFetchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_provider_fetches_completed_total",
			Help: "Total number of successful external data fetches",
		},
		[]string{"provider"},
	)

	ProviderFetchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_provider_fetches_failed_total",
			Help: "Total number of failed external data fetches",
		},
		[]string{"provider"},
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_provider_fetch_duration_seconds",
			Help: "Duration of individual external data fetches in seconds",
		},
		[]string{"provider"},
	)

	ApplicationsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_applications_pruned_total",
			Help: "Total number of applications removed by the prune sweeper",
		},
		[]string{"type_id"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_prune_sweep_duration_seconds",
			Help: "Duration of prune sweeper runs in seconds",
		},
	)
)
