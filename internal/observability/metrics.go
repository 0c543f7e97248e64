package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "flows_started_total", Help: "Listing flows started"},
		[]string{"variant"},
	)
	FlowsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "flows_cancelled_total", Help: "Listing flows cancelled by the user"},
		[]string{"variant"},
	)
	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{Namespace: "poputky", Name: "sessions_expired_total", Help: "Sessions found stale on access"})
	InputRejected   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "input_rejected_total", Help: "Inbound events rejected by step validation"},
		[]string{"step"},
	)

	ListingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "listings_created_total", Help: "Listings persisted at flow finalize"},
		[]string{"listing_type"},
	)
	FinalizeFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "poputky", Name: "finalize_failures_total", Help: "Finalize attempts that failed to persist"})

	MatchesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "matches_total", Help: "Match candidates found per tier"},
		[]string{"tier"},
	)
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "poputky", Name: "match_latency_seconds", Help: "Listing matcher latency seconds"})

	ViberMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "viber_import_messages_total", Help: "Imported Viber chat messages by outcome"},
		[]string{"outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "poputky", Name: "notifications_total", Help: "Notification dispatch outcomes"},
		[]string{"outcome"},
	)
)
