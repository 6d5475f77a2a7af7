package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector collects HTTP request metrics.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// NewMetricsCollector registers the HTTP collectors under namespace on reg.
func NewMetricsCollector(namespace string, reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "path"}),
		activeRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_active",
			Help:      "Current number of active requests.",
		}),
	}
}

// RecordRequest records one finished request.
func (m *MetricsCollector) RecordRequest(method, path string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Metrics 记录请求数与耗时。path 标签使用路由模板，未匹配的路由记为 "unmatched"，
// 避免标签基数随 URL 增长。
func Metrics(m *MetricsCollector, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		m.activeRequests.Inc()
		start := time.Now()
		defer func() {
			m.activeRequests.Dec()
			path := c.FullPath()
			if path == "" {
				path = "unmatched"
			}
			m.RecordRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
		}()

		c.Next()
	}
}
