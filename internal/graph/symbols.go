package graph

import (
	"strings"

	coreerrors "flowscope/internal/core/errors"
	"flowscope/internal/parser"
)

// Resolution is the outcome of a successful symbol lookup.
type Resolution struct {
	Module     string
	Definition *parser.Definition
}

// ResolveSymbol resolves a name visible inside fromModule to its defining
// module. Resolution order: local definitions, imported names (following
// aliases back to the original name in the target module, then re-export
// chains), wildcard imports. Dotted names walk one level of
// module-as-symbol indirection ("util.helper" through "from pkg import
// util"). Re-export chains are bounded by the graph's max depth so mutual
// re-export cycles terminate.
func (g *DependencyGraph) ResolveSymbol(fromModule, name string) (*Resolution, error) {
	if !g.Built() {
		return nil, coreerrors.NotBuilt("ResolveSymbol")
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	return g.resolveSymbol(fromModule, name, 0, visited), nil
}

func (g *DependencyGraph) resolveSymbol(module, name string, depth int, visited map[string]bool) *Resolution {
	if depth > g.maxDepth {
		return nil
	}
	key := module + "\x00" + name
	if visited[key] {
		return nil
	}
	visited[key] = true

	// Local definition wins.
	if def, ok := g.definitions[module][name]; ok {
		c := *def
		return &Resolution{Module: module, Definition: &c}
	}

	// Imported name: look up the original name in the target's table,
	// recursing through re-exports.
	if b, ok := g.bindings[module][name]; ok && b.Name != "" {
		if res := g.resolveSymbol(b.Module, b.Name, depth+1, visited); res != nil {
			return res
		}
	}

	// Dotted access through a module binding: longest prefix first.
	if strings.Contains(name, ".") {
		for prefix := name; ; {
			idx := strings.LastIndex(prefix, ".")
			if idx < 0 {
				break
			}
			prefix = prefix[:idx]
			b, ok := g.bindings[module][prefix]
			if !ok || b.Name != "" {
				continue
			}
			rest := name[len(prefix)+1:]
			if res := g.resolveSymbol(b.Module, rest, depth+1, visited); res != nil {
				return res
			}
		}
	}

	// Wildcard imports: scan each target's table, re-exports included.
	for _, wm := range g.wildcards[module] {
		if res := g.resolveSymbol(wm, name, depth+1, visited); res != nil {
			return res
		}
	}

	return nil
}

// ResolveCallee maps a call site's callee text to a (module, function)
// pair in another project module via the import bindings. Callees that do
// not resolve through an import are local or external; the per-function
// taint pass handles the local case by itself.
func (g *DependencyGraph) ResolveCallee(module, callee string) (targetModule, function string, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolveCallee(module, callee)
}

func (g *DependencyGraph) resolveCallee(module, callee string) (string, string, bool) {
	// Bare name bound by "from M import f [as g]".
	if b, ok := g.bindings[module][callee]; ok && b.Name != "" {
		return g.chaseReExport(b.Module, b.Name, 0)
	}

	// Dotted callee through a module binding: "util.run", "pkg.sub.run".
	if idx := strings.LastIndex(callee, "."); idx > 0 {
		head, fn := callee[:idx], callee[idx+1:]
		for prefix := head; prefix != ""; {
			if b, ok := g.bindings[module][prefix]; ok && b.Name == "" {
				target := b.Module + head[len(prefix):]
				if _, known := g.modules[target]; known {
					return g.chaseReExport(target, fn, 0)
				}
			}
			cut := strings.LastIndex(prefix, ".")
			if cut < 0 {
				break
			}
			prefix = prefix[:cut]
		}
	}

	// Wildcard imports make every public name of the target callable.
	for _, wm := range g.wildcards[module] {
		if _, ok := g.definitions[wm][callee]; ok {
			return wm, callee, true
		}
	}

	return "", "", false
}

// chaseReExport follows "from X import f" chains until a module actually
// defining f is found, bounded by max depth.
func (g *DependencyGraph) chaseReExport(module, name string, depth int) (string, string, bool) {
	if depth > g.maxDepth {
		return "", "", false
	}
	if _, ok := g.definitions[module][name]; ok {
		return module, name, true
	}
	if b, ok := g.bindings[module][name]; ok && b.Name != "" {
		return g.chaseReExport(b.Module, b.Name, depth+1)
	}
	// Unknown symbol in a known module still counts as a resolved target;
	// the summary map simply won't have an entry for it.
	if _, ok := g.modules[module]; ok {
		return module, name, true
	}
	return "", "", false
}
