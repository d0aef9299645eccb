package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route, status and envelope code.",
	}, []string{"path", "method", "status", "code"})

	latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"path", "method"})
)

func init() { prometheus.MustRegister(requests, latency) }

// Metrics records request counts and latency. Unrouted requests share one
// path label so scanners cannot blow up cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m := c.Request.Method
		requests.WithLabelValues(path, m, strconv.Itoa(c.Writer.Status()), code(c)).Inc()
		latency.WithLabelValues(path, m).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler serves the default registry, store counters included.
func MetricsHandler() http.Handler { return promhttp.Handler() }
