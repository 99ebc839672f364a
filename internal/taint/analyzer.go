package taint

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"flowscope/internal/core/errors"
	"flowscope/internal/graph"
	"flowscope/internal/shared/observability"
	"flowscope/internal/shared/util"
)

// TaintedParam records a function parameter that reaches a sink, the
// raw material for interprocedural flows.
type TaintedParam struct {
	Module   string
	Function string
	Param    string
	Category Category
	CWE      string
}

// AnalysisResult is the full outcome of one taint pass over a built
// dependency graph.
type AnalysisResult struct {
	ModulesAnalyzed   int
	FunctionsAnalyzed int
	TaintedParameters []TaintedParam
	Flows             []Flow
	Vulnerabilities   []Vulnerability
	Errors            []string
	Warnings          []string
}

// Analyzer drives summary extraction, call-graph construction, tracing
// and classification over a built graph.
type Analyzer struct {
	graph   *graph.DependencyGraph
	catalog *Catalog
	workers int
	logger  *slog.Logger
}

type AnalyzerOptions struct {
	Catalog *Catalog
	Workers int
	Logger  *slog.Logger
}

func NewAnalyzer(g *graph.DependencyGraph, opts AnalyzerOptions) *Analyzer {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{graph: g, catalog: catalog, workers: workers, logger: logger}
}

// Analyze runs the complete taint pass. The graph must be built first.
// Cancellation between modules returns the partial result with a
// truncation warning rather than discarding finished work.
func (a *Analyzer) Analyze(ctx context.Context) (*AnalysisResult, error) {
	if !a.graph.Built() {
		return nil, errors.NotBuilt("taint analysis")
	}
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("taint").Observe(time.Since(start).Seconds())
	}()

	result := &AnalysisResult{}

	summaries, truncated := a.buildSummaries(ctx)
	result.ModulesAnalyzed = a.graph.ModuleCount()
	result.FunctionsAnalyzed = len(summaries)
	if truncated {
		result.Warnings = append(result.Warnings, "analysis cancelled, results are partial")
	}

	cg, err := BuildCallGraph(a.graph)
	if err != nil {
		return nil, err
	}
	tracer := NewTracer(a.graph, a.catalog, a.graph.MaxDepth())
	result.Flows = tracer.Trace(summaries, cg)
	result.TaintedParameters = collectTaintedParams(summaries)
	result.Vulnerabilities = Classify(result.Flows)

	observability.TaintFlowsTotal.Add(float64(len(result.Flows)))
	for _, v := range result.Vulnerabilities {
		observability.VulnerabilitiesTotal.WithLabelValues(string(v.Severity)).Inc()
	}

	a.logger.Debug("taint analysis complete",
		"modules", result.ModulesAnalyzed,
		"functions", result.FunctionsAnalyzed,
		"flows", len(result.Flows),
		"vulnerabilities", len(result.Vulnerabilities),
		"duration", time.Since(start))

	return result, nil
}

// buildSummaries fans module summary extraction out over the worker
// pool and merges results in discovery order so output is stable
// regardless of scheduling.
func (a *Analyzer) buildSummaries(ctx context.Context) ([]*Summary, bool) {
	modules := a.graph.ModulesInOrder()
	perModule := make([][]*Summary, len(modules))
	builder := NewSummaryBuilder(a.catalog)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				file, ok := a.graph.File(modules[i])
				if !ok {
					continue
				}
				perModule[i] = builder.BuildForModule(file)
			}
		}()
	}

	truncated := false
feed:
	for i := range modules {
		select {
		case <-ctx.Done():
			truncated = true
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	var summaries []*Summary
	for _, batch := range perModule {
		summaries = append(summaries, batch...)
	}
	return summaries, truncated
}

func collectTaintedParams(summaries []*Summary) []TaintedParam {
	var params []TaintedParam
	for _, s := range summaries {
		for _, p := range util.SortedStringKeys(s.ParamSinks) {
			for _, sr := range s.ParamSinks[p] {
				params = append(params, TaintedParam{
					Module:   s.Module,
					Function: s.Function,
					Param:    p,
					Category: sr.Category,
					CWE:      sr.CWE,
				})
			}
		}
	}
	return params
}
