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
		Namespace: "plantmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Annotation subsystem metrics
	FeaturePushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "sync",
		Name:      "feature_pushes_total",
		Help:      "Feature collections pushed to rendering surfaces",
	})

	FeaturePushesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "sync",
		Name:      "feature_pushes_skipped_total",
		Help:      "Feature pushes skipped because content was unchanged or superseded",
	}, []string{"reason"})

	FeaturesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "sync",
		Name:      "features_dropped_total",
		Help:      "Entities or areas dropped from the feature collection as malformed",
	}, []string{"kind"})

	DetailCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "detail",
		Name:      "cache_hits_total",
		Help:      "Detail lookups answered from the in-memory cache",
	})

	DetailCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "detail",
		Name:      "cache_misses_total",
		Help:      "Detail lookups that issued a fresh fetch",
	})

	DetailInflightJoins = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "detail",
		Name:      "inflight_joins_total",
		Help:      "Detail lookups that joined an already in-flight fetch",
	})

	DetailFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "detail",
		Name:      "fallbacks_total",
		Help:      "Detail records served from the offline copy after a fetch failure",
	})

	SuppressedDeletes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "draw",
		Name:      "suppressed_deletes_total",
		Help:      "Surface delete events swallowed as programmatic echoes",
	})

	ConversionPassthroughs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmap",
		Subsystem: "crs",
		Name:      "conversion_passthroughs_total",
		Help:      "CRS conversions that fell back to passthrough",
	}, []string{"system"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plantmap",
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Current number of live annotation sessions",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plantmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plantmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plantmap",
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
		path := c.Route().Path
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

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
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
