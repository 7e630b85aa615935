package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_requests_total",
		Help: "Fetch attempts by transport method and result.",
	}, []string{"method", "result"})

	DiscoveredArticles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_articles_total",
		Help: "Articles returned by discovery per endpoint type.",
	}, []string{"endpoint"})

	ExtractionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extraction_results_total",
		Help: "Full-text extraction outcomes.",
	}, []string{"result"})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_calls_total",
		Help: "Layer 3 scoring calls by result.",
	}, []string{"result"})

	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "task_runs_total",
		Help: "Pipeline tasks by type and result.",
	}, []string{"type", "result"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Pipeline task duration.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	}, []string{"type"})
)

func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
