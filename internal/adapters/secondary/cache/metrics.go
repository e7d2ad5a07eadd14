package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheOpsTotal : op = get|set|delete, result = hit|miss|ok|error|open
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_cache_operations_total",
			Help: "Cache operations by operation and result",
		},
		[]string{"op", "result"},
	)

	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_cache_breaker_open",
			Help: "1 when the cache circuit breaker is open",
		},
	)
)
