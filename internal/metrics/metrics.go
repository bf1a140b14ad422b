package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvestigationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amlscope_investigations_started_total",
		Help: "Total number of investigations created.",
	})

	InvestigationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amlscope_investigations_completed_total",
		Help: "Total number of investigations that reached Completed.",
	})

	InvestigationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amlscope_investigations_failed_total",
		Help: "Total number of investigations that reached Failed.",
	})

	StagesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amlscope_stages_executed_total",
		Help: "Total number of stage executions, labelled by stage and status.",
	}, []string{"stage", "status"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amlscope_tool_calls_total",
		Help: "Total number of tool invocations, labelled by tool and status.",
	}, []string{"tool", "status"})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amlscope_cache_requests_total",
		Help: "Total number of cache lookups, labelled by namespace and outcome.",
	}, []string{"namespace", "outcome"})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amlscope_llm_calls_total",
		Help: "Total number of language-model invocations, labelled by status.",
	}, []string{"status"})

	StageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amlscope_stage_duration_ms",
		Help:    "Stage execution latency in milliseconds.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	EnrichmentQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amlscope_enrichment_queue_utilization_ratio",
		Help: "Current enrichment task queue utilization (0–1).",
	})
)
