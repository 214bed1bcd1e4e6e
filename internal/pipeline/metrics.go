package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the pipeline orchestrator.
// All metrics use the signalsai_pipeline_ namespace.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	StageCallsTotal      *prometheus.CounterVec
	StageCallDuration    *prometheus.HistogramVec
	TasksExtractedTotal  *prometheus.CounterVec
	RecommendationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers pipeline metrics on the given registry.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by pipeline and outcome.",
		}, []string{"pipeline", "status"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signalsai",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds.",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		}, []string{"pipeline"}),

		StageCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "pipeline",
			Name:      "stage_calls_total",
			Help:      "Total remote agent calls by stage and status.",
		}, []string{"stage", "status"}),

		StageCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signalsai",
			Subsystem: "pipeline",
			Name:      "stage_call_duration_seconds",
			Help:      "Remote agent call duration in seconds by stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),

		TasksExtractedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "pipeline",
			Name:      "tasks_extracted_total",
			Help:      "Total tasks extracted by origin stage.",
		}, []string{"stage"}),

		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalsai",
			Subsystem: "pipeline",
			Name:      "recommendations_total",
			Help:      "Total recommendations parsed by auditor.",
		}, []string{"auditor"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageCallsTotal,
		m.StageCallDuration,
		m.TasksExtractedTotal,
		m.RecommendationsTotal,
	)

	return m
}
