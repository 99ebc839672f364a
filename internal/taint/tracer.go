package taint

import (
	"fmt"

	"flowscope/internal/graph"
	"flowscope/internal/shared/util"
)

// Flow is a complete source-to-sink taint path. The first hop is the
// source site, the last the sink call, and the hop count never exceeds
// max depth + 1.
type Flow struct {
	SourceModule   string
	SourceFunction string
	SourceLine     int
	SinkModule     string
	SinkFunction   string
	SinkLine       int
	SinkCallee     string
	Category       Category
	CWE            string
	Path           []Hop
	TaintedData    string
}

// Tracer connects per-function summaries through the cross-module call
// graph. Interprocedural reasoning is a two-hop relation: a caller's
// tainted argument meeting a callee parameter that reaches a sink. Longer
// chains emerge by repeating that relation, bounded by max depth.
type Tracer struct {
	graph    *graph.DependencyGraph
	catalog  *Catalog
	maxDepth int
}

func NewTracer(g *graph.DependencyGraph, catalog *Catalog, maxDepth int) *Tracer {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Tracer{graph: g, catalog: catalog, maxDepth: maxDepth}
}

func (t *Tracer) Trace(summaries []*Summary, edges []*CallEdge) []Flow {
	index := indexSummaries(summaries)

	t.propagate(summaries, edges, index)

	var flows []Flow
	flows = append(flows, t.localFlows(summaries)...)
	flows = append(flows, t.callSiteFlows(edges, index)...)

	return t.dedup(flows)
}

// propagate runs the transitive rounds: returns-tainted values flow into
// assignments, and parameter-to-sink facts climb from callees into their
// callers. Each round extends chains by one call hop, so max depth rounds
// suffice.
func (t *Tracer) propagate(summaries []*Summary, edges []*CallEdge, index map[string]map[string]*Summary) {
	for round := 0; round < t.maxDepth; round++ {
		changed := false

		for _, s := range summaries {
			for _, ac := range s.assignCalls {
				if _, already := s.TaintedLocals[ac.Target]; already {
					continue
				}
				ts := t.calleeSummary(index, s.Module, ac.Callee)
				if ts == nil || !ts.ReturnsTainted || ts.ReturnTaint == nil {
					continue
				}
				path := appendHop(ts.ReturnTaint.Path, Hop{Module: s.Module, Function: s.Function, Line: ac.Line})
				if len(path) > t.maxDepth+1 {
					continue
				}
				info := *ts.ReturnTaint
				info.Path = path
				if s.taintLocal(ac.Target, &info) {
					changed = true
				}
			}
		}

		for _, e := range edges {
			ts := lookupSummary(index, e.TargetModule, e.TargetFunction)
			cs := lookupSummary(index, e.CallerModule, e.CallerFunction)
			if ts == nil || cs == nil {
				continue
			}
			for i, argName := range e.argNames {
				if argName == "" || i >= len(ts.Params) {
					continue
				}
				callerParams := cs.paramsOf(argName)
				if len(callerParams) == 0 {
					continue
				}
				for _, sr := range ts.ParamSinks[ts.Params[i]] {
					path := appendHop([]Hop{{Module: e.CallerModule, Function: e.CallerFunction, Line: e.Line}}, sr.Path...)
					if len(path) > t.maxDepth {
						continue
					}
					for p := range callerParams {
						key := fmt.Sprintf("prop:%s:%d->%s.%s:%d", p, e.Line, sr.Module, sr.Function, sr.Line)
						if cs.sinkSeen[key] {
							continue
						}
						cs.sinkSeen[key] = true
						propagated := sr
						propagated.Path = path
						cs.ParamSinks[p] = append(cs.ParamSinks[p], propagated)
						changed = true
					}
				}
			}
		}

		for _, s := range summaries {
			if s.settle(t.catalog) {
				changed = true
			}
		}

		if !changed {
			break
		}
	}
}

// localFlows reports sinks hit by source-tainted variables inside a
// single function, the forward-trace half of the analysis.
func (t *Tracer) localFlows(summaries []*Summary) []Flow {
	var flows []Flow
	for _, s := range summaries {
		for _, name := range util.SortedStringKeys(s.LocalSinks) {
			info := s.TaintedLocals[name]
			if info == nil {
				continue
			}
			for _, sr := range s.LocalSinks[name] {
				path := joinPaths(info.Path, sr.Path)
				if len(path) > t.maxDepth+1 {
					continue
				}
				flows = append(flows, Flow{
					SourceModule:   info.Module,
					SourceFunction: info.Function,
					SourceLine:     info.Line,
					SinkModule:     sr.Module,
					SinkFunction:   sr.Function,
					SinkLine:       sr.Line,
					SinkCallee:     sr.Callee,
					Category:       sr.Category,
					CWE:            sr.CWE,
					Path:           path,
					TaintedData:    describeTaint(name, info),
				})
			}
		}
	}
	return flows
}

// callSiteFlows checks every call edge against the callee's
// parameter-to-sink map.
func (t *Tracer) callSiteFlows(edges []*CallEdge, index map[string]map[string]*Summary) []Flow {
	var flows []Flow
	for _, e := range edges {
		ts := lookupSummary(index, e.TargetModule, e.TargetFunction)
		if ts == nil {
			continue
		}
		cs := lookupSummary(index, e.CallerModule, e.CallerFunction)

		for i := range e.Args {
			if i >= len(ts.Params) {
				break
			}
			sinks := ts.ParamSinks[ts.Params[i]]
			if len(sinks) == 0 {
				continue
			}

			callerHop := Hop{Module: e.CallerModule, Function: e.CallerFunction, Line: e.Line}

			if name := e.argNames[i]; name != "" && cs != nil {
				info := cs.TaintedLocals[name]
				if info == nil {
					continue
				}
				for _, sr := range sinks {
					path := joinPaths(appendHop(info.Path, callerHop), sr.Path)
					if len(path) > t.maxDepth+1 {
						continue
					}
					flows = append(flows, t.flowFromInfo(info, sr, path, name))
				}
				continue
			}

			callee := e.argCalls[i]
			if callee == "" {
				continue
			}

			if spec, ok := t.catalog.MatchSource(callee); ok {
				for _, sr := range sinks {
					path := appendHop([]Hop{callerHop}, sr.Path...)
					if len(path) > t.maxDepth+1 {
						continue
					}
					flows = append(flows, Flow{
						SourceModule:   e.CallerModule,
						SourceFunction: e.CallerFunction,
						SourceLine:     e.Line,
						SinkModule:     sr.Module,
						SinkFunction:   sr.Function,
						SinkLine:       sr.Line,
						SinkCallee:     sr.Callee,
						Category:       sr.Category,
						CWE:            sr.CWE,
						Path:           path,
						TaintedData:    fmt.Sprintf("%s value from %s()", spec.Category, callee),
					})
				}
				continue
			}

			// The inline argument is a user function returning taint,
			// e.g. run(read_input()).
			rs := t.calleeSummary(index, e.CallerModule, callee)
			if rs == nil || !rs.ReturnsTainted || rs.ReturnTaint == nil {
				continue
			}
			info := rs.ReturnTaint
			for _, sr := range sinks {
				path := joinPaths(appendHop(info.Path, callerHop), sr.Path)
				if len(path) > t.maxDepth+1 {
					continue
				}
				flows = append(flows, t.flowFromInfo(info, sr, path, callee+"()"))
			}
		}
	}
	return flows
}

func (t *Tracer) flowFromInfo(info *TaintInfo, sr SinkRef, path []Hop, data string) Flow {
	return Flow{
		SourceModule:   info.Module,
		SourceFunction: info.Function,
		SourceLine:     info.Line,
		SinkModule:     sr.Module,
		SinkFunction:   sr.Function,
		SinkLine:       sr.Line,
		SinkCallee:     sr.Callee,
		Category:       sr.Category,
		CWE:            sr.CWE,
		Path:           path,
		TaintedData:    describeTaintData(data, info),
	}
}

// dedup keeps the first-discovered path per source/sink line pair.
func (t *Tracer) dedup(flows []Flow) []Flow {
	seen := make(map[string]bool, len(flows))
	out := make([]Flow, 0, len(flows))
	for _, f := range flows {
		key := fmt.Sprintf("%s:%d->%s:%d", f.SourceModule, f.SourceLine, f.SinkModule, f.SinkLine)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func (t *Tracer) calleeSummary(index map[string]map[string]*Summary, module, callee string) *Summary {
	if t.graph == nil {
		return nil
	}
	if tm, tf, ok := t.graph.ResolveCallee(module, callee); ok {
		if s := lookupSummary(index, tm, tf); s != nil {
			return s
		}
	}
	if fn, ok := localCallee(t.graph, module, callee); ok {
		return lookupSummary(index, module, fn)
	}
	return nil
}

func indexSummaries(summaries []*Summary) map[string]map[string]*Summary {
	index := make(map[string]map[string]*Summary)
	for _, s := range summaries {
		if index[s.Module] == nil {
			index[s.Module] = make(map[string]*Summary)
		}
		index[s.Module][s.Function] = s
	}
	return index
}

func lookupSummary(index map[string]map[string]*Summary, module, function string) *Summary {
	return index[module][function]
}

func appendHop(path []Hop, hops ...Hop) []Hop {
	out := make([]Hop, 0, len(path)+len(hops))
	out = append(out, path...)
	out = append(out, hops...)
	return out
}

func joinPaths(a, b []Hop) []Hop {
	out := make([]Hop, 0, len(a)+len(b))
	out = append(out, a...)
	for _, h := range b {
		if len(out) > 0 && out[len(out)-1] == h {
			continue
		}
		out = append(out, h)
	}
	return out
}

func describeTaint(name string, info *TaintInfo) string {
	return fmt.Sprintf("%s carries %s from %s()", name, info.Category, info.SourceCallee)
}

func describeTaintData(data string, info *TaintInfo) string {
	return fmt.Sprintf("%s carries %s from %s()", data, info.Category, info.SourceCallee)
}
