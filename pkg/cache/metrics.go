package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh entries served from the cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokepulse_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks lookups that found no fresh entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokepulse_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictions tracks stale entries removed during lookups
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokepulse_cache_evictions_total",
			Help: "Total number of stale entries evicted on read",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokepulse_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "stats"
	)
)
