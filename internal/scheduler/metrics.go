package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the trigger scheduler.
type Metrics struct {
	JobsFired     prometheus.Counter
	JobsSucceeded prometheus.Counter
	JobsFailed    prometheus.Counter
	JobDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers scheduler metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		JobsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "scheduler",
			Name:      "jobs_fired_total",
			Help:      "Total cron triggers fired.",
		}),
		JobsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "scheduler",
			Name:      "jobs_succeeded_total",
			Help:      "Total cron triggers that finished without error.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "scheduler",
			Name:      "jobs_failed_total",
			Help:      "Total cron triggers that returned an error.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signalsai",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of each trigger run by job.",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.JobsFired,
		m.JobsSucceeded,
		m.JobsFailed,
		m.JobDuration,
	)

	return m
}
