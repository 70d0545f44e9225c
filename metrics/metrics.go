package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request pipeline
	RequestsObserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackerlens_requests_observed_total",
			Help: "Total number of requests passed through the interceptor while enabled",
		},
	)

	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackerlens_matches_total",
			Help: "Total number of requests that matched a filter rule, by category",
		},
		[]string{"category"},
	)

	MatchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackerlens_match_cache_lookups_total",
			Help: "Match cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	// Sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackerlens_active_sessions",
			Help: "Number of live session records",
		},
	)

	// Rule set
	PatternsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackerlens_patterns_loaded",
			Help: "Number of distinct patterns in the installed store",
		},
	)

	RuleLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackerlens_rule_load_duration_seconds",
			Help:    "Time spent fetching and building the pattern store",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// Persistence
	PersistFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackerlens_persist_flushes_total",
			Help: "Durable writes by outcome",
		},
		[]string{"outcome"},
	)
)
