package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storemap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Directory metrics
	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "directory",
		Name:      "store_writes_total",
		Help:      "Total store writes by operation and outcome",
	}, []string{"op", "outcome"})

	IndexMaskedFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storemap",
		Name:      "index_masked_failures_total",
		Help:      "Spatial index failures answered with an empty result",
	}, []string{"op"})

	IndexQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storemap",
		Subsystem: "index",
		Name:      "query_duration_seconds",
		Help:      "Spatial index query latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"op"})

	StoresReindexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "index",
		Name:      "stores_reindexed_total",
		Help:      "Total stores re-projected into the spatial index",
	})

	// Gateway metrics
	IdempotentReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "idempotency",
		Name:      "replays_total",
		Help:      "Total responses replayed from the idempotency cache",
	}, []string{"route"})

	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "admission",
		Name:      "rejections_total",
		Help:      "Total requests rejected by the admission controller",
	}, []string{"class"})

	AdmissionBackendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "admission",
		Name:      "backend_errors_total",
		Help:      "Rate counter failures that admitted the request",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storemap",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total store events published by outcome",
	}, []string{"type", "outcome"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storemap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storemap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storemap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storemap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path // route pattern keeps cardinality low
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// ObserveIndexQuery records the latency of one spatial index query.
func ObserveIndexQuery(op string, start time.Time) {
	IndexQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	// Matches *pgxpool.Stat without importing pgx here.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
