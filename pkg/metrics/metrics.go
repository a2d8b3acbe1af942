package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Total number of research runs by final status.",
		},
		[]string{"status"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_llm_requests_total",
			Help: "Total number of LLM calls by phase and outcome.",
		},
		[]string{"phase", "status"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_llm_request_duration_seconds",
			Help:    "LLM call latency by phase.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"phase"},
	)

	SearchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_search_requests_total",
			Help: "Total number of web search calls by provider and outcome.",
		},
		[]string{"provider", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_search_request_duration_seconds",
			Help:    "Web search latency by provider.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider"},
	)

	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_emails_sent_total",
			Help: "Total number of report delivery attempts by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		LLMRequests,
		LLMDuration,
		SearchRequests,
		SearchDuration,
		EmailsSent,
	)
}
