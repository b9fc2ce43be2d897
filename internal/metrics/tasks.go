package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Background task run time by type and outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"task_type", "outcome"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "running",
			Help:      "Background tasks currently running.",
		},
		[]string{"task_type"},
	)
)

// Task outcomes. A skipped task failed in a way retrying cannot fix.
const (
	outcomeOK      = "ok"
	outcomeRetry   = "retry"
	outcomeSkipped = "skipped"
)

// AsynqMetricsMiddleware times every task and labels it with its outcome.
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			running := tasksRunning.WithLabelValues(task.Type())
			running.Inc()
			defer running.Dec()

			started := time.Now()
			err := next.ProcessTask(ctx, task)
			taskDuration.WithLabelValues(task.Type(), taskOutcome(err)).Observe(time.Since(started).Seconds())
			return err
		})
	}
}

func taskOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, asynq.SkipRetry):
		return outcomeSkipped
	default:
		return outcomeRetry
	}
}
