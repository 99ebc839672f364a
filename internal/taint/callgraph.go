package taint

import (
	"fmt"

	coreerrors "flowscope/internal/core/errors"
	"flowscope/internal/graph"
)

// CallEdge is a resolved cross-module call site. Arguments are reduced to
// bare variable names or the opaque placeholder; the original callee of a
// nested call argument is kept alongside so the tracer can recognize
// sources passed inline.
type CallEdge struct {
	CallerModule   string
	CallerFunction string
	Line           int
	TargetModule   string
	TargetFunction string
	Args           []string

	argNames []string
	argCalls []string
}

func (e *CallEdge) key() string {
	return fmt.Sprintf("%s:%d->%s.%s", e.CallerModule, e.Line, e.TargetModule, e.TargetFunction)
}

// BuildCallGraph resolves every call expression against each module's
// import bindings. Callees that do not resolve to an imported symbol stay
// out of the cross-file graph; they are either local (covered by the
// per-function summaries) or external.
func BuildCallGraph(g *graph.DependencyGraph) ([]*CallEdge, error) {
	if !g.Built() {
		return nil, coreerrors.NotBuilt("BuildCallGraph")
	}

	var edges []*CallEdge
	seen := make(map[string]bool)

	for _, module := range g.ModulesInOrder() {
		file, ok := g.File(module)
		if !ok {
			continue
		}
		for i := range file.Calls {
			call := &file.Calls[i]
			targetModule, targetFunction, ok := g.ResolveCallee(module, call.Callee)
			if !ok || targetModule == module {
				continue
			}

			edge := &CallEdge{
				CallerModule:   module,
				CallerFunction: scopeName(call.Scope),
				Line:           call.Location.Line,
				TargetModule:   targetModule,
				TargetFunction: targetFunction,
			}
			for _, arg := range call.Args {
				edge.Args = append(edge.Args, arg.Reduced())
				edge.argNames = append(edge.argNames, arg.Name)
				edge.argCalls = append(edge.argCalls, arg.Call)
			}

			if seen[edge.key()] {
				continue
			}
			seen[edge.key()] = true
			edges = append(edges, edge)
		}
	}

	return edges, nil
}

func scopeName(scope string) string {
	if scope == "" {
		return ModuleScope
	}
	return scope
}

// localCallee resolves a bare callee inside its own module, for
// same-module helper chains that never cross a file boundary.
func localCallee(g *graph.DependencyGraph, module, callee string) (string, bool) {
	if g.HasDefinition(module, callee) {
		return callee, true
	}
	return "", false
}
