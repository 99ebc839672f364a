package graph

import (
	coreerrors "flowscope/internal/core/errors"
)

// Cycle is an import loop found in the graph. Cycles are reported, never
// treated as fatal, so Severity is always "warning" today.
type Cycle struct {
	Modules  []string
	Files    []string
	Severity string
}

// DetectCycles re-runs cycle detection on a built graph.
func (g *DependencyGraph) DetectCycles() ([]Cycle, error) {
	if !g.Built() {
		return nil, coreerrors.NotBuilt("DetectCycles")
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return detectCycles(g), nil
}

// detectCycles walks the import graph depth-first with an on-stack set.
// A back-edge to a node still on the stack closes a cycle; the captured
// sequence is the stack slice from that node through the current one.
func detectCycles(g *DependencyGraph) []Cycle {
	var cycles []Cycle
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	for _, mod := range g.order {
		if !visited[mod] {
			findCycles(g, mod, visited, onStack, []string{}, &cycles)
		}
	}

	return cycles
}

func findCycles(g *DependencyGraph, curr string, visited, onStack map[string]bool, path []string, cycles *[]Cycle) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range g.neighborsOf(curr) {
		if onStack[next] {
			cycleStart := -1
			for i, mod := range path {
				if mod == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				modules := make([]string, len(path)-cycleStart)
				copy(modules, path[cycleStart:])
				files := make([]string, 0, len(modules))
				for _, m := range modules {
					if mod, ok := g.modules[m]; ok {
						files = append(files, mod.File)
					}
				}
				*cycles = append(*cycles, Cycle{
					Modules:  modules,
					Files:    files,
					Severity: "warning",
				})
			}
		} else if !visited[next] {
			findCycles(g, next, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}

// TopologicalOrder linearizes the graph with Kahn's algorithm. Zero
// in-degree ties break in FIFO discovery order so results are reproducible.
// When cycles exist the residual nodes are appended in discovery order and
// complete is false.
func (g *DependencyGraph) TopologicalOrder() (order []string, complete bool, err error) {
	if !g.Built() {
		return nil, false, coreerrors.NotBuilt("TopologicalOrder")
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	inDegree := make(map[string]int, len(g.modules))
	for _, mod := range g.order {
		inDegree[mod] = 0
	}
	for _, mod := range g.order {
		for _, next := range g.neighborsOf(mod) {
			inDegree[next]++
		}
	}

	var queue []string
	for _, mod := range g.order {
		if inDegree[mod] == 0 {
			queue = append(queue, mod)
		}
	}

	order = make([]string, 0, len(g.modules))
	placed := make(map[string]bool, len(g.modules))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)
		placed[curr] = true

		for _, next := range g.neighborsOf(curr) {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	complete = len(order) == len(g.modules)
	if !complete {
		// Cyclic leftovers keep discovery order so reruns agree.
		for _, mod := range g.order {
			if !placed[mod] {
				order = append(order, mod)
			}
		}
	}

	return order, complete, nil
}
