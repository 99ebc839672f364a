package graph

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"flowscope/internal/parser"
	"flowscope/internal/resolver"
	"flowscope/internal/shared/observability"
	"flowscope/internal/shared/util"
)

type BuildResult struct {
	Success     bool
	ModuleCount int
	ImportCount int
	Cycles      []Cycle
	Errors      []string
	Warnings    []string
}

type Options struct {
	ExcludeDirs  []string
	ExcludeFiles []string
	Workers      int
	MaxDepth     int
	Limiter      *util.Limiter
}

// Builder walks the project, parses every source file on a worker pool and
// merges the per-file results into a DependencyGraph at a single
// aggregation point. Parse failures degrade to warnings; the graph keeps
// whatever parsed cleanly.
type Builder struct {
	root         string
	parser       *parser.Parser
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	workers      int
	maxDepth     int
	limiter      *util.Limiter
}

func NewBuilder(root string, p *parser.Parser, opts Options) (*Builder, error) {
	b := &Builder{
		root:     root,
		parser:   p,
		workers:  opts.Workers,
		maxDepth: opts.MaxDepth,
		limiter:  opts.Limiter,
	}
	if b.workers <= 0 {
		b.workers = 4
	}
	if b.maxDepth <= 0 {
		b.maxDepth = 10
	}

	for _, pattern := range opts.ExcludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude dir pattern %q: %w", pattern, err)
		}
		b.excludeDirs = append(b.excludeDirs, g)
	}
	for _, pattern := range opts.ExcludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude file pattern %q: %w", pattern, err)
		}
		b.excludeFiles = append(b.excludeFiles, g)
	}

	return b, nil
}

type fileResult struct {
	path string
	file *parser.File
	err  error
}

func (b *Builder) Build(ctx context.Context) (*DependencyGraph, *BuildResult, error) {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("graph_build").Observe(time.Since(start).Seconds())
	}()

	result := &BuildResult{Success: true}
	g := newGraph(b.maxDepth)

	paths, err := b.enumerate()
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("enumerate source files: %v", err))
		return g, result, err
	}
	if len(paths) == 0 {
		result.Success = false
		result.Errors = append(result.Errors, "no source files found under project root")
		return g, result, nil
	}

	res := resolver.New(b.root)
	for _, p := range paths {
		res.Register(res.PathToModule(p), p)
	}

	results := b.parseAll(ctx, paths)
	if ctx.Err() != nil {
		result.Warnings = append(result.Warnings,
			"scan cancelled before completion, results are truncated")
	}

	// Aggregation barrier: everything below runs single-threaded on the
	// merged results.
	for _, fr := range results {
		if fr.err != nil {
			observability.ParseFailuresTotal.Inc()
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("parse failure in %s: %v", fr.path, fr.err))
			continue
		}
		if fr.file == nil {
			continue
		}
		module := res.PathToModule(fr.path)
		if existing, ok := g.modules[module]; ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"module %q defined by both %s and %s, keeping the first",
				module, existing.File, fr.path))
			continue
		}
		fr.file.Module = module
		g.addFile(fr.file)
	}

	for _, module := range g.order {
		linkImports(g, res, g.modules[module], result)
	}
	result.Warnings = append(result.Warnings, res.TakeWarnings()...)

	cycles := detectCycles(g)
	if len(cycles) > 0 {
		result.Cycles = cycles
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d import cycle(s) detected", len(cycles)))
	}

	result.ModuleCount = len(g.modules)
	result.ImportCount = countEdges(g)
	g.markBuilt()

	slog.Debug("graph build complete",
		"modules", result.ModuleCount,
		"imports", result.ImportCount,
		"cycles", len(result.Cycles),
		"warnings", len(result.Warnings))

	return g, result, nil
}

func (b *Builder) enumerate() ([]string, error) {
	var files []string

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		base := filepath.Base(path)
		if d.IsDir() {
			if path == b.root {
				return nil
			}
			for _, g := range b.excludeDirs {
				if g.Match(base) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !b.parser.IsSupportedPath(path) {
			return nil
		}
		for _, g := range b.excludeFiles {
			if g.Match(base) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// parseAll fans the file list out to the worker pool. Results land in a
// slice indexed by position so the merge order matches enumeration order
// regardless of worker scheduling.
func (b *Builder) parseAll(ctx context.Context, paths []string) []fileResult {
	results := make([]fileResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = b.parseOne(ctx, paths[idx])
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (b *Builder) parseOne(ctx context.Context, path string) fileResult {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, 1); err != nil {
			return fileResult{path: path, err: err}
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}

	file, err := b.parser.ParseFile(path, content)
	return fileResult{path: path, file: file, err: err}
}

// linkImports turns a module's raw import statements into graph edges and
// name bindings. Only project modules get edges; imports of third-party
// code are intentionally left out of the graph.
func linkImports(g *DependencyGraph, res *resolver.ModuleResolver, mod *Module, result *BuildResult) {
	for i := range mod.Imports {
		imp := &mod.Imports[i]

		target, ok := res.ResolveImport(mod.Name, imp.Module, imp.Level)
		if !ok && imp.Level == 0 && imp.Module != "" && res.LooksLocal(imp.Module) {
			target, ok = imp.Module, true
		}

		if ok && target != "" {
			linkResolved(g, res, mod, imp, target)
			continue
		}

		// "from . import x" has an empty module part: each item may be a
		// sibling module in its own right.
		linkedAny := false
		if len(imp.Items) > 0 {
			for _, item := range imp.Items {
				if item.Name == "*" {
					continue
				}
				itemTarget, itemOK := res.ResolveImport(mod.Name, item.Name, imp.Level)
				if !itemOK {
					continue
				}
				linkedAny = true
				g.addEdge(&ImportEdge{
					From:  mod.Name,
					To:    itemTarget,
					Raw:   imp.Raw,
					Kind:  imp.Kind,
					Level: imp.Level,
					Line:  imp.Location.Line,
				})
				g.addBinding(mod.Name, item.Binding(), Binding{Module: itemTarget})
			}
		}

		if !linkedAny && imp.Level > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"unresolved relative import %q in module %s (line %d)",
				imp.Raw, mod.Name, imp.Location.Line))
		}
	}
}

func linkResolved(g *DependencyGraph, res *resolver.ModuleResolver, mod *Module, imp *parser.Import, target string) {
	edgeTargets := []string{target}

	switch {
	case imp.IsWildcard():
		g.addWildcard(mod.Name, target)

	case len(imp.Items) > 0:
		// from M import a, b: an item is either a symbol of M or a
		// submodule M.a; edges point at whichever exists.
		edgeTargets = edgeTargets[:0]
		for _, item := range imp.Items {
			sub := target + "." + item.Name
			if _, known := res.Known(sub); known {
				edgeTargets = append(edgeTargets, sub)
				g.addBinding(mod.Name, item.Binding(), Binding{Module: sub})
				continue
			}
			edgeTargets = append(edgeTargets, target)
			g.addBinding(mod.Name, item.Binding(), Binding{Module: target, Name: item.Name})
		}
		edgeTargets = util.Dedupe(edgeTargets)

	case imp.Alias != "":
		g.addBinding(mod.Name, imp.Alias, Binding{Module: target})

	default:
		g.addBinding(mod.Name, target, Binding{Module: target})
	}

	for _, to := range edgeTargets {
		g.addEdge(&ImportEdge{
			From:  mod.Name,
			To:    to,
			Raw:   imp.Raw,
			Kind:  imp.Kind,
			Level: imp.Level,
			Line:  imp.Location.Line,
		})
	}
}

func countEdges(g *DependencyGraph) int {
	n := 0
	for _, edges := range g.edges {
		n += len(edges)
	}
	return n
}
