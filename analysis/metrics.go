package analysis

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for Metrics.Requests.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeAnalyzed = "analyzed"
	OutcomeAbsent   = "absent"
	OutcomePanic    = "panic"
)

// Metrics holds the Prometheus collectors of the analysis pipeline.
type Metrics struct {
	Requests     *prometheus.CounterVec // Analyze calls by outcome
	CacheLookups *prometheus.CounterVec // result cache reads by result (hit, miss)
	AgentCalls   *prometheus.CounterVec // agent calls by result
	AgentLatency prometheus.Histogram   // agent call duration in seconds
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failsight_analysis_requests_total",
			Help: "Analyze calls by outcome",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failsight_analysis_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),
		AgentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failsight_agent_calls_total",
			Help: "Agent calls by result",
		}, []string{"result"}),
		AgentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "failsight_agent_call_duration_seconds",
			Help:    "Duration of agent calls, including timed out ones",
			Buckets: []float64{.05, .1, .2, .4, .8, 1.5, 3, 5},
		}),
	}

	reg.MustRegister(m.Requests, m.CacheLookups, m.AgentCalls, m.AgentLatency)
	return m
}

// agentResult maps a Client.Call error to its metric label.
func agentResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrInvalidAnalysis):
		return "invalid"
	default:
		return "error"
	}
}
