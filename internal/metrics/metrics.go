package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type CheckerMetrics struct {
	RunsTotal              *prometheus.CounterVec
	RunDuration            prometheus.Histogram
	ProbeResults           *prometheus.CounterVec
	ProbeDuration          *prometheus.HistogramVec
	PairLookups            *prometheus.CounterVec
	ActiveRPC              *prometheus.GaugeVec
	RPCLatency             *prometheus.HistogramVec
	RPCErrors              *prometheus.CounterVec
	RPCCircuitBreakerTrips *prometheus.CounterVec
	ChainIDFetchFailures   *prometheus.CounterVec
	CodeAnalysisFlags      *prometheus.CounterVec
	CodeAnalysisDuration   prometheus.Histogram
	NarrativeFailures      prometheus.Counter
	ReportsStored          prometheus.Counter
}

func NewCheckerMetrics() *CheckerMetrics {
	return &CheckerMetrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_runs_total",
			Help: "Total number of pipeline runs by outcome (done, not_found, error)",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rugcheck_run_duration_seconds",
			Help:    "Wall time of a full pipeline run in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ProbeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_probe_results_total",
			Help: "Total number of probe results by probe and status (ok, failed, timeout)",
		}, []string{"probe", "status"}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rugcheck_probe_duration_seconds",
			Help:    "Time taken by each probe in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"probe"}),
		PairLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_pair_lookups_total",
			Help: "Total number of factory getPair lookups per quote symbol and result (found, zero, error)",
		}, []string{"quote", "result"}),
		ActiveRPC: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rugcheck_active_rpc",
			Help: "Indicates which RPC endpoint is currently active (1=active, 0=inactive)",
		}, []string{"url"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rugcheck_rpc_latency_seconds",
			Help:    "RPC call latency in seconds per method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_rpc_errors_total",
			Help: "Total number of RPC errors per method and class (revert, transport, timeout)",
		}, []string{"method", "class"}),
		RPCCircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_rpc_circuit_breaker_trips_total",
			Help: "Total number of times the RPC circuit breaker has been tripped per endpoint",
		}, []string{"url"}),
		ChainIDFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_chain_id_fetch_failures_total",
			Help: "Total number of failed ChainID fetch attempts",
		}, []string{"url"}),
		CodeAnalysisFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugcheck_code_analysis_flags_total",
			Help: "Total number of times a specific code analysis flag has been detected",
		}, []string{"flag"}),
		CodeAnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rugcheck_code_analysis_duration_seconds",
			Help:    "Time taken to analyze contract bytecode in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		NarrativeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rugcheck_narrative_failures_total",
			Help: "Total number of narrative generation failures",
		}),
		ReportsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rugcheck_reports_stored_total",
			Help: "Total number of reports written to the archive",
		}),
	}
}

func RegisterMetrics(reg prometheus.Registerer, m *CheckerMetrics) {
	reg.MustRegister(m.RunsTotal, m.RunDuration, m.ProbeResults, m.ProbeDuration, m.PairLookups, m.ActiveRPC, m.RPCLatency, m.RPCErrors, m.RPCCircuitBreakerTrips, m.ChainIDFetchFailures, m.CodeAnalysisFlags, m.CodeAnalysisDuration, m.NarrativeFailures, m.ReportsStored)
}
