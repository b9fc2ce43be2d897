// Package metrics exposes Prometheus collectors for the HTTP API, the task
// worker and the resume operations they run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resumebuilder"

var (
	pdfRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pdf",
			Name:      "render_duration_seconds",
			Help:      "Time spent printing a resume to PDF.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	analysesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Resume analyses computed.",
		},
	)
)

// ObservePDFRender records one render attempt.
func ObservePDFRender(started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pdfRenderDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// IncAnalyses counts one analysis run.
func IncAnalyses() {
	analysesTotal.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
