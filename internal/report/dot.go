package report

import (
	"fmt"
	"sort"
	"strings"

	"flowscope/internal/graph"
	"flowscope/internal/taint"
)

// DOTGenerator renders the module dependency graph in Graphviz format.
// Modules touched by a taint flow get a distinct fill, cycle edges a red
// CYCLE label.
type DOTGenerator struct {
	graph *graph.DependencyGraph
}

func NewDOTGenerator(g *graph.DependencyGraph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

func (d *DOTGenerator) Generate(cycles []graph.Cycle, flows []taint.Flow) (string, error) {
	if !d.graph.Built() {
		return "", fmt.Errorf("dependency graph not built")
	}

	var buf strings.Builder

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.5;\n")
	buf.WriteString("  splines=polyline;\n\n")

	cycleEdges := make(map[string]map[string]bool)
	inCycle := make(map[string]bool)
	for _, cycle := range cycles {
		for i, from := range cycle.Modules {
			to := cycle.Modules[(i+1)%len(cycle.Modules)]
			if cycleEdges[from] == nil {
				cycleEdges[from] = make(map[string]bool)
			}
			cycleEdges[from][to] = true
			inCycle[from] = true
		}
	}

	tainted := make(map[string]bool)
	for _, f := range flows {
		tainted[f.SourceModule] = true
		tainted[f.SinkModule] = true
	}

	for _, name := range d.graph.ModulesInOrder() {
		defs, _ := d.graph.Definitions(name)
		label := fmt.Sprintf("%s\\n(%d defs)", name, len(defs))

		switch {
		case inCycle[name] && tainted[name]:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"mistyrose\", color=\"red\", style=\"rounded,filled\", penwidth=2.0];\n", name, label))
		case inCycle[name]:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"mistyrose\", style=\"rounded,filled\", color=\"red\"];\n", name, label))
		case tainted[name]:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"lightyellow\", style=\"rounded,filled\", color=\"darkorange\"];\n", name, label))
		default:
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", color=\"darkslategrey\"];\n", name, label))
		}
	}
	buf.WriteString("\n")

	for _, from := range d.graph.ModulesInOrder() {
		targets := make(map[string]bool)
		for _, e := range d.graph.ImportsOf(from) {
			targets[e.To] = true
		}
		tos := make([]string, 0, len(targets))
		for to := range targets {
			tos = append(tos, to)
		}
		sort.Strings(tos)
		for _, to := range tos {
			if cycleEdges[from] != nil && cycleEdges[from][to] {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", from, to))
			} else {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"forestgreen\", penwidth=1.5];\n", from, to))
			}
		}
	}

	// Taint flows as dashed overlay edges from source to sink module.
	flowEdges := make(map[string]bool)
	for _, f := range flows {
		key := f.SourceModule + "->" + f.SinkModule
		if flowEdges[key] || f.SourceModule == f.SinkModule {
			continue
		}
		flowEdges[key] = true
		buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"darkorange\", style=dashed, label=\"taint\"];\n", f.SourceModule, f.SinkModule))
	}

	buf.WriteString("}\n")

	return buf.String(), nil
}
