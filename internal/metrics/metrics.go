package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_jobs_submitted_total",
		Help: "Total number of conversion jobs submitted",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_jobs_completed_total",
		Help: "Total number of jobs completed successfully",
	})

	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_jobs_failed_total",
		Help: "Total number of jobs that failed",
	})

	JobsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_jobs_cancelled_total",
		Help: "Total number of jobs cancelled by clients",
	})

	JobProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slidecast_job_processing_duration_seconds",
		Help:    "Time taken to process jobs in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	})

	SlidesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_slides_processed_total",
		Help: "Total number of slides processed across all jobs",
	})

	LLMRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_llm_requests_total",
		Help: "Total number of LLM generation requests",
	})

	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slidecast_llm_request_duration_seconds",
		Help:    "Time taken by LLM generation requests in seconds",
		Buckets: prometheus.DefBuckets,
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slidecast_active_workers",
		Help: "Current number of workers processing a job",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slidecast_websocket_clients",
		Help: "Current number of connected websocket clients",
	})
)
