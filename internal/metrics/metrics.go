package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "zumo"

var (
	AuthRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Total number of requests seen by the authentication middleware, labeled by validation mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	PrincipalsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "principals_resolved_total",
			Help:      "Total number of principals attached to requests, labeled by provider (or anonymous).",
		},
		[]string{"provider"},
	)

	TokenExchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchange_total",
			Help:      "Total number of upstream token exchange calls, labeled by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	TokenExchangeLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_exchange_latency_seconds",
			Help:      "Latency of upstream token exchange calls (seconds).",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by rate limiting, labeled by scope and operation.",
		},
		[]string{"scope", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthRequestsTotal,
		PrincipalsResolvedTotal,
		TokenExchangeTotal,
		TokenExchangeLatencySeconds,
		RateLimitHitsTotal,
	)
}
