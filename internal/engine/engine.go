package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"flowscope/internal/config"
	"flowscope/internal/data/history"
	"flowscope/internal/graph"
	"flowscope/internal/parser"
	"flowscope/internal/report"
	"flowscope/internal/shared/util"
	"flowscope/internal/taint"
)

// ScanReport is the combined outcome of one build-and-analyze pass.
type ScanReport struct {
	ID               string
	Build            *graph.BuildResult
	Analysis         *taint.AnalysisResult
	TopologicalOrder []string
	OrderComplete    bool
	Duration         time.Duration
}

// Engine owns the full pipeline: parse the project into a dependency
// graph, run taint analysis over it, emit reports and persist the scan.
// Scan may be called repeatedly; watch mode simply calls it again.
type Engine struct {
	cfg    *config.Config
	parser *parser.Parser
	logger *slog.Logger
	store  *history.Store

	mu    sync.RWMutex
	graph *graph.DependencyGraph
	last  *ScanReport
}

func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		parser: parser.NewParser(parser.NewGrammarLoader()),
		logger: logger,
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open scan history: %w", err)
		}
		e.store = store
	}

	return e, nil
}

func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Scan runs the pipeline once. Build failures (unreadable root, empty
// project) come back as a report with Success=false and no analysis.
func (e *Engine) Scan(ctx context.Context) (*ScanReport, error) {
	start := time.Now()
	scanID := uuid.NewString()

	var limiter *util.Limiter
	if e.cfg.Analysis.ParseRate > 0 {
		limiter = util.NewLimiter(e.cfg.Analysis.ParseRate, e.cfg.Analysis.ParseBurst)
	}

	builder, err := graph.NewBuilder(e.cfg.ProjectRoot, e.parser, graph.Options{
		ExcludeDirs:  e.cfg.Exclude.Dirs,
		ExcludeFiles: e.cfg.Exclude.Files,
		Workers:      e.cfg.Analysis.Workers,
		MaxDepth:     e.cfg.Analysis.MaxDepth,
		Limiter:      limiter,
	})
	if err != nil {
		return nil, err
	}

	g, buildResult, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	rep := &ScanReport{ID: scanID, Build: buildResult}
	if !buildResult.Success {
		rep.Duration = time.Since(start)
		e.setLast(g, rep)
		return rep, nil
	}

	order, complete, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	rep.TopologicalOrder = order
	rep.OrderComplete = complete

	analysis, err := taint.NewAnalyzer(g, taint.AnalyzerOptions{
		Workers: e.cfg.Analysis.Workers,
		Logger:  e.logger,
	}).Analyze(ctx)
	if err != nil {
		return nil, err
	}
	if !e.cfg.Analysis.IncludeLowSev {
		analysis.Vulnerabilities = dropLowSeverity(analysis.Vulnerabilities)
	}
	rep.Analysis = analysis
	rep.Duration = time.Since(start)

	e.setLast(g, rep)

	if err := e.writeOutputs(g, rep); err != nil {
		e.logger.Warn("failed to write report outputs", "error", err)
	}
	if err := e.persist(rep); err != nil {
		e.logger.Warn("failed to persist scan", "error", err)
	}

	e.logger.Info("scan complete",
		"scan", scanID,
		"modules", buildResult.ModuleCount,
		"imports", buildResult.ImportCount,
		"cycles", len(buildResult.Cycles),
		"flows", len(analysis.Flows),
		"vulnerabilities", len(analysis.Vulnerabilities),
		"duration", rep.Duration)

	return rep, nil
}

// Graph returns the dependency graph of the most recent scan, nil before
// the first one.
func (e *Engine) Graph() *graph.DependencyGraph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph
}

func (e *Engine) LastReport() *ScanReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

func (e *Engine) setLast(g *graph.DependencyGraph, rep *ScanReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = g
	e.last = rep
}

func (e *Engine) writeOutputs(g *graph.DependencyGraph, rep *ScanReport) error {
	if e.cfg.Output.DOT != "" {
		dot, err := report.NewDOTGenerator(g).Generate(rep.Build.Cycles, rep.Analysis.Flows)
		if err != nil {
			return err
		}
		if err := os.WriteFile(e.cfg.Output.DOT, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write dot output: %w", err)
		}
	}

	if e.cfg.Output.Markdown != "" {
		md, err := report.NewMarkdownGenerator().Generate(report.MarkdownReportData{
			ProjectRoot:     e.cfg.ProjectRoot,
			ScanID:          rep.ID,
			ModuleCount:     rep.Build.ModuleCount,
			ImportCount:     rep.Build.ImportCount,
			Cycles:          rep.Build.Cycles,
			Flows:           rep.Analysis.Flows,
			Vulnerabilities: rep.Analysis.Vulnerabilities,
			Warnings:        append(append([]string{}, rep.Build.Warnings...), rep.Analysis.Warnings...),
		}, report.MarkdownReportOptions{})
		if err != nil {
			return err
		}
		if err := os.WriteFile(e.cfg.Output.Markdown, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write markdown output: %w", err)
		}
	}

	return nil
}

func (e *Engine) persist(rep *ScanReport) error {
	if e.store == nil {
		return nil
	}

	var high, medium, low int
	vulns := make([]history.VulnRecord, 0, len(rep.Analysis.Vulnerabilities))
	for _, v := range rep.Analysis.Vulnerabilities {
		switch v.Severity {
		case taint.SeverityHigh:
			high++
		case taint.SeverityMedium:
			medium++
		default:
			low++
		}
		vulns = append(vulns, history.VulnRecord{
			ScanID:       rep.ID,
			Category:     string(v.Category),
			CWE:          v.CWE,
			Severity:     string(v.Severity),
			SourceModule: v.Flow.SourceModule,
			SourceLine:   v.Flow.SourceLine,
			SinkModule:   v.Flow.SinkModule,
			SinkLine:     v.Flow.SinkLine,
			SinkCallee:   v.Flow.SinkCallee,
			Description:  v.Description,
		})
	}

	return e.store.SaveScan(history.ScanRecord{
		ID:                 rep.ID,
		Timestamp:          time.Now().UTC(),
		ModuleCount:        rep.Build.ModuleCount,
		ImportCount:        rep.Build.ImportCount,
		CycleCount:         len(rep.Build.Cycles),
		FlowCount:          len(rep.Analysis.Flows),
		VulnerabilityCount: len(rep.Analysis.Vulnerabilities),
		HighCount:          high,
		MediumCount:        medium,
		LowCount:           low,
		DurationMS:         rep.Duration.Milliseconds(),
	}, vulns)
}

// History returns past scans for trend inspection, newest last. Returns
// nil when history is disabled.
func (e *Engine) History(since time.Time) ([]history.ScanRecord, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.LoadScans("", since)
}

func dropLowSeverity(vulns []taint.Vulnerability) []taint.Vulnerability {
	out := make([]taint.Vulnerability, 0, len(vulns))
	for _, v := range vulns {
		if v.Severity == taint.SeverityLow {
			continue
		}
		out = append(out, v)
	}
	return out
}
