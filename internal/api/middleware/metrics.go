// metrics.go — Prometheus HTTP метрики Forum Module.
// Регистрирует метрики: forum_http_requests_total, forum_http_request_duration_seconds.
package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_http_requests_total",
			Help: "Общее количество HTTP-запросов к Forum Module",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forum_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Forum Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack нужен websocket upgrade на /ws.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw.statusCode = http.StatusSwitchingProtocols
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// normalizePath заменяет идентификаторы в пути на шаблоны,
// чтобы не раздувать кардинальность метрик.
// /api/v1/posts/42/replies → /api/v1/posts/{id}/replies
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/ws",
		"/login", "/logout", "/auth/discord/callback",
		"/api/v1/me",
		"/api/v1/categories",
		"/api/v1/admin/users",
		"/api/v1/admin/access-roles",
		"/api/v1/admin/role-labels":
		return path
	}

	prefixes := []struct {
		prefix string
		result string
	}{
		{"/api/v1/categories/", "/api/v1/categories/{key}"},
		{"/api/v1/posts/", "/api/v1/posts/{id}"},
		{"/api/v1/admin/access-roles/", "/api/v1/admin/access-roles/{roleID}"},
		{"/api/v1/admin/role-labels/", "/api/v1/admin/role-labels/{roleID}"},
	}

	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(path, p.prefix)
		if !ok || rest == "" {
			continue
		}
		_, suffix, hasSuffix := strings.Cut(rest, "/")
		if !hasSuffix {
			return p.result
		}
		switch suffix {
		case "posts", "replies", "close", "reopen":
			return p.result + "/" + suffix
		default:
			return p.result + "/{other}"
		}
	}

	return "/other"
}
