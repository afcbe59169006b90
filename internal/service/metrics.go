package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	issuesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highway_issues_created_total",
			Help: "Highway issues created, by initial status",
		},
		[]string{"status"},
	)

	issueTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highway_issue_transitions_total",
			Help: "Issue status changes",
		},
		[]string{"from", "to"},
	)

	weatherCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weather_cache_hits_total",
		Help: "Weather observations served from cache",
	})

	weatherCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weather_cache_misses_total",
		Help: "Weather observations fetched from the provider",
	})

	weatherRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weather_refresh_duration_seconds",
		Help:    "Duration of a full weather grid refresh",
		Buckets: prometheus.DefBuckets,
	})
)
