// Package metrics registers the gateway's Prometheus collectors.
// HTTP metrics are recorded by Middleware; business metrics are exported for the
// service and adapter layers to update.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelshare_http_requests_total",
			Help: "Total HTTP requests handled by the gateway",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var (
	// UploadsTotal counts upload attempts by result (ok, invalid, too_large, network, rejected, error).
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelshare_uploads_total",
			Help: "Model uploads by result",
		},
		[]string{"result"},
	)

	// ResolutionsTotal counts shared-link resolutions by outcome source.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelshare_resolutions_total",
			Help: "Shared model resolutions by source (cache, candidate, not_found, unavailable, superseded, error)",
		},
		[]string{"source"},
	)

	// ProbesTotal counts reachability probes by result.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelshare_probes_total",
			Help: "Reachability probes by result (reachable, unreachable, inconclusive, circuit_open)",
		},
		[]string{"result"},
	)

	// ProbeDuration observes probe latency.
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelshare_probe_duration_seconds",
			Help:    "Reachability probe duration in seconds",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// CacheWriteFailures counts best-effort cache writes that failed.
	CacheWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelshare_cache_write_failures_total",
			Help: "Failed metadata cache writes by operation (put, remove)",
		},
		[]string{"op"},
	)
)

// Middleware records request count and latency per route template.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// Route().Path is the template ("/models/:id"), which keeps label cardinality bounded.
		path := c.Route().Path
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}
