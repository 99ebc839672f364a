package graph

import (
	"sort"
	"sync"

	"flowscope/internal/parser"
	"flowscope/internal/shared/observability"
)

// Module is one analyzed source file under its dotted id. Package-index
// files collapse to their containing directory's module name.
type Module struct {
	Name    string
	File    string
	Imports []parser.Import // raw statements as written
}

type ImportEdge struct {
	From  string
	To    string
	Raw   string
	Kind  parser.ImportKind
	Level int
	Line  int
}

// Binding records what a name imported into a module refers to. Name is
// empty when the binding is a module rather than one of its symbols.
type Binding struct {
	Module string
	Name   string
}

// DependencyGraph is populated by the Builder and immutable once built.
// Queries that depend on a complete graph fail with a NOT_BUILT error when
// called early; that is a caller bug, not an empty project.
type DependencyGraph struct {
	mu sync.RWMutex

	modules     map[string]*Module
	order       []string // FIFO discovery order, drives deterministic iteration
	edges       map[string][]*ImportEdge
	importedBy  map[string]map[string]bool
	definitions map[string]map[string]*parser.Definition
	files       map[string]*parser.File // module -> parsed file
	bindings    map[string]map[string]Binding
	wildcards   map[string][]string // module -> wildcard-imported modules

	maxDepth int
	built    bool
}

func newGraph(maxDepth int) *DependencyGraph {
	return &DependencyGraph{
		modules:     make(map[string]*Module),
		edges:       make(map[string][]*ImportEdge),
		importedBy:  make(map[string]map[string]bool),
		definitions: make(map[string]map[string]*parser.Definition),
		files:       make(map[string]*parser.File),
		bindings:    make(map[string]map[string]Binding),
		wildcards:   make(map[string][]string),
		maxDepth:    maxDepth,
	}
}

func (g *DependencyGraph) addFile(file *parser.File) {
	mod := &Module{
		Name:    file.Module,
		File:    file.Path,
		Imports: append([]parser.Import(nil), file.Imports...),
	}
	g.modules[file.Module] = mod
	g.order = append(g.order, file.Module)
	g.files[file.Module] = file

	defs := make(map[string]*parser.Definition, len(file.Definitions))
	for i := range file.Definitions {
		def := file.Definitions[i]
		if _, exists := defs[def.Name]; !exists {
			defs[def.Name] = &def
		}
	}
	g.definitions[file.Module] = defs
}

func (g *DependencyGraph) addEdge(edge *ImportEdge) {
	g.edges[edge.From] = append(g.edges[edge.From], edge)
	if g.importedBy[edge.To] == nil {
		g.importedBy[edge.To] = make(map[string]bool)
	}
	g.importedBy[edge.To][edge.From] = true
}

func (g *DependencyGraph) addBinding(module, name string, b Binding) {
	if g.bindings[module] == nil {
		g.bindings[module] = make(map[string]Binding)
	}
	if _, exists := g.bindings[module][name]; !exists {
		g.bindings[module][name] = b
	}
}

func (g *DependencyGraph) addWildcard(module, target string) {
	for _, t := range g.wildcards[module] {
		if t == target {
			return
		}
	}
	g.wildcards[module] = append(g.wildcards[module], target)
}

func (g *DependencyGraph) markBuilt() {
	g.mu.Lock()
	g.built = true
	g.mu.Unlock()

	observability.GraphModules.Set(float64(len(g.modules)))
	observability.GraphEdges.Set(float64(g.EdgeCount()))
}

func (g *DependencyGraph) Built() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.built
}

func (g *DependencyGraph) MaxDepth() int {
	return g.maxDepth
}

// ModulesInOrder returns module ids in discovery order.
func (g *DependencyGraph) ModulesInOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

func (g *DependencyGraph) GetModule(name string) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	mod, ok := g.modules[name]
	if !ok {
		return nil, false
	}
	c := &Module{
		Name:    mod.Name,
		File:    mod.File,
		Imports: append([]parser.Import(nil), mod.Imports...),
	}
	return c, true
}

func (g *DependencyGraph) ModuleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.modules)
}

func (g *DependencyGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, edges := range g.edges {
		n += len(edges)
	}
	return n
}

// ImportsOf returns the outgoing import edges of a module in statement order.
func (g *DependencyGraph) ImportsOf(module string) []*ImportEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.edges[module]
	out := make([]*ImportEdge, len(edges))
	for i, e := range edges {
		c := *e
		out[i] = &c
	}
	return out
}

// ImportedBy returns the modules importing the given one, sorted.
func (g *DependencyGraph) ImportedBy(module string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	importers := make([]string, 0, len(g.importedBy[module]))
	for from := range g.importedBy[module] {
		importers = append(importers, from)
	}
	sort.Strings(importers)
	return importers
}

// Definitions returns the symbol table of a module keyed by qualified name.
func (g *DependencyGraph) Definitions(module string) (map[string]*parser.Definition, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	defs, ok := g.definitions[module]
	if !ok {
		return nil, false
	}
	out := make(map[string]*parser.Definition, len(defs))
	for k, v := range defs {
		c := *v
		out[k] = &c
	}
	return out, true
}

func (g *DependencyGraph) HasDefinition(module, name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.definitions[module][name]
	return ok
}

// File returns the parsed source backing a module. The taint stages read
// call sites and assignments from it after the build barrier.
func (g *DependencyGraph) File(module string) (*parser.File, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	f, ok := g.files[module]
	return f, ok
}

func (g *DependencyGraph) LookupBinding(module, name string) (Binding, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.bindings[module][name]
	return b, ok
}

func (g *DependencyGraph) Wildcards(module string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.wildcards[module]...)
}

// neighborsOf returns unique outgoing targets that are project modules,
// in first-edge order. Callers must hold at least a read lock.
func (g *DependencyGraph) neighborsOf(module string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.edges[module] {
		if seen[e.To] {
			continue
		}
		if _, ok := g.modules[e.To]; !ok {
			continue
		}
		seen[e.To] = true
		out = append(out, e.To)
	}
	return out
}
