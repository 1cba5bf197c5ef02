package middleware

import (
	"database/sql"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
	HttpResponseSize    *prometheus.HistogramVec

	// List query metrics
	ListTotal    *prometheus.CounterVec
	ListDuration *prometheus.HistogramVec
	ListRecords  *prometheus.CounterVec
	ListErrors   *prometheus.CounterVec

	// Connection pool metrics
	ConnectionPoolOpen  prometheus.Gauge
	ConnectionPoolInUse prometheus.Gauge
	ConnectionPoolIdle  prometheus.Gauge
}

var (
	metrics     *PrometheusMetrics
	metricsOnce sync.Once
)

// InitMetrics registers every metric on the default Prometheus registry.
// Later calls are no-ops.
func InitMetrics() {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer)
	})
}

func newMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(registerer)
	return &PrometheusMetrics{
		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liana_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HttpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liana_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),

		ListTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_list_total",
				Help: "Total number of list requests per collection",
			},
			[]string{"collection", "status"},
		),
		ListDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liana_list_duration_seconds",
				Help:    "Count and list execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		ListRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_list_records_total",
				Help: "Total number of records returned by list requests",
			},
			[]string{"collection"},
		),
		ListErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_list_errors_total",
				Help: "Total number of failed list requests",
			},
			[]string{"collection", "error_type"},
		),

		ConnectionPoolOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liana_connection_pool_open",
			Help: "Number of open database connections",
		}),
		ConnectionPoolInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liana_connection_pool_in_use",
			Help: "Number of database connections in use",
		}),
		ConnectionPoolIdle: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liana_connection_pool_idle",
			Help: "Number of idle database connections",
		}),
	}
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		metrics.HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
		if c.Writer.Size() > 0 {
			metrics.HttpResponseSize.WithLabelValues(method, endpoint).Observe(float64(c.Writer.Size()))
		}
	}
}

// RecordListMetrics records one list request of a collection. errorType is
// empty on success.
func RecordListMetrics(collection, errorType string, duration time.Duration, records int) {
	if metrics == nil {
		return
	}

	status := "success"
	if errorType != "" {
		status = "error"
		metrics.ListErrors.WithLabelValues(collection, errorType).Inc()
	}
	metrics.ListTotal.WithLabelValues(collection, status).Inc()
	metrics.ListDuration.WithLabelValues(collection).Observe(duration.Seconds())
	if records > 0 {
		metrics.ListRecords.WithLabelValues(collection).Add(float64(records))
	}
}

// UpdateConnectionPoolMetrics publishes the database pool statistics
func UpdateConnectionPoolMetrics(stats sql.DBStats) {
	if metrics == nil {
		return
	}

	metrics.ConnectionPoolOpen.Set(float64(stats.OpenConnections))
	metrics.ConnectionPoolInUse.Set(float64(stats.InUse))
	metrics.ConnectionPoolIdle.Set(float64(stats.Idle))
}
