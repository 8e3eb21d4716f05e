package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesCast counts ledger writes by direction and outcome (created, flipped, reactivated, unchanged).
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_cast_total",
		Help: "Total number of vote casts by direction and outcome",
	}, []string{"direction", "outcome"})

	// VoteConflicts counts unique-constraint races resolved by re-reading the endorsement.
	VoteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_vote_conflicts_total",
		Help: "Total number of concurrent vote inserts resolved by retry",
	})

	// IdeaTransitions counts lifecycle transitions by event and resulting state.
	IdeaTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_idea_transitions_total",
		Help: "Total number of idea lifecycle transitions",
	}, []string{"event", "to"})

	// OfficialStatusChanges counts administrative official-status calls.
	OfficialStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_official_status_changes_total",
		Help: "Total number of official status changes by call",
	}, []string{"call"})

	// Merges counts merge engine runs by mode and result.
	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_merges_total",
		Help: "Total number of idea merges by mode and result",
	}, []string{"mode", "result"})

	// MergeDuration records merge transaction latency.
	MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agora_merge_duration_seconds",
		Help:    "Merge transaction latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// AdRefunds sums capital refunded when ads are deactivated.
	AdRefunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_ad_refunded_capital_total",
		Help: "Total capital refunded to advertisers",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})
)
