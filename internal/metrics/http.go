package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that hit no route so raw paths never become
// label values.
const unmatchedRoute = "unmatched"

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by route template and status class.",
		},
		[]string{"method", "route", "code"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served.",
		},
	)
)

// GinMiddleware records request counts and latency per route template.
// Scrapes of skipPaths are served but not counted.
func GinMiddleware(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		httpInFlight.Inc()
		started := time.Now()
		c.Next()
		httpInFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
		httpRequestsTotal.WithLabelValues(method, route, statusClass(c.Writer.Status())).Inc()
	}
}

// statusClass folds a status into 2xx/3xx/4xx/5xx, except for the codes the
// resume routes answer with on purpose.
func statusClass(status int) string {
	switch status {
	case 401, 404, 409, 429, 503:
		return strconv.Itoa(status)
	}
	return strconv.Itoa(status/100) + "xx"
}
