package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowscope_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	})

	GraphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowscope_graph_modules_total",
		Help: "Total number of modules in the dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowscope_graph_edges_total",
		Help: "Total number of import edges in the dependency graph.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowscope_analysis_seconds",
		Help:    "Time spent on analysis stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowscope_parse_failures_total",
		Help: "Total number of files that failed to parse.",
	})

	TaintFlowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowscope_taint_flows_total",
		Help: "Total number of taint flows discovered across all scans.",
	})

	VulnerabilitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowscope_vulnerabilities_total",
		Help: "Total number of vulnerabilities reported, by severity.",
	}, []string{"severity"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowscope_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
