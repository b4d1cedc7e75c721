package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики синхронизации ролей и кэша ролей гильдии.
var (
	roleSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_role_sync_total",
		Help: "Синхронизации ролей пользователей по результату (ok, throttled, member_not_found, upstream_error, store_error)",
	}, []string{"result"})

	roleSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forum_role_sync_duration_seconds",
		Help:    "Длительность синхронизации ролей пользователя с Discord",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms … ~5s
	})

	roleCacheRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_role_cache_refresh_total",
		Help: "Обновления кэша ролей гильдии по результату (ok, error)",
	}, []string{"result"})

	roleCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_role_cache_roles",
		Help: "Количество ролей в кэше гильдии",
	})
)
