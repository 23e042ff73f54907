package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AttemptsFinalized считает закрытые попытки по причине закрытия
	AttemptsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_finalized_total",
			Help: "Total number of finalized exam attempts",
		},
		[]string{"reason"},
	)

	// SandboxRuns считает запуски песочницы по исходу (ok, rejected, query_error)
	SandboxRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sandbox_runs_total",
			Help: "Total number of sandbox query runs",
		},
		[]string{"outcome"},
	)

	SandboxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_sandbox_run_duration_seconds",
			Help:    "Duration of sandbox query runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 3},
		},
	)

	// ProctorConnections текущее число подключений канала прокторинга
	ProctorConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_proctor_connections",
			Help: "Number of open proctoring WebSocket connections",
		},
	)

	ProctorMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_proctor_messages_total",
			Help: "Total number of proctoring messages by direction and type",
		},
		[]string{"direction", "type"},
	)

	initOnce sync.Once
)

// Init регистрирует метрики в реестре по умолчанию. Повторный вызов безопасен.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(AttemptsFinalized)
		prometheus.MustRegister(SandboxRuns)
		prometheus.MustRegister(SandboxDuration)
		prometheus.MustRegister(ProctorConnections)
		prometheus.MustRegister(ProctorMessages)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
