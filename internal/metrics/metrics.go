// Package metrics defines the prometheus collectors shared by the lifecycle
// engine and the notification dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts stage change attempts by kind (transition, force)
	// and outcome (ok, invalid_transition, insufficient_score, conflict, persistence).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cocoon_stage_changes_total",
		Help: "Total stage change attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	// TokensMinted counts newly minted tokens by purpose.
	TokensMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cocoon_tokens_minted_total",
		Help: "Total tokens minted by purpose",
	}, []string{"purpose"})

	// MilestoneErrors counts milestone side effects that failed after a
	// transition was persisted.
	MilestoneErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cocoon_milestone_errors_total",
		Help: "Total milestone side effects that failed",
	})

	// Notifications counts dispatched notifications by type and result (ok, error, dropped).
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cocoon_notifications_total",
		Help: "Total notifications by type and result",
	}, []string{"type", "result"})

	// Scores tracks the distribution of evaluated scores.
	Scores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cocoon_dream_score",
		Help:    "Distribution of evaluated dream scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
)
