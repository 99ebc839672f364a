package taint

import (
	"fmt"

	"flowscope/internal/parser"
)

// ModuleScope is the pseudo-function owning statements that sit at module
// level; scripts frequently read input and hit sinks outside any def.
const ModuleScope = "<module>"

// Hop is one step of a taint path.
type Hop struct {
	Module   string
	Function string
	Line     int
}

// TaintInfo records how a value became tainted: the catalog source that
// introduced it and the hops it took to reach its current holder.
type TaintInfo struct {
	SourceCallee string
	Category     string
	Module       string // origin
	Function     string
	Line         int
	Path         []Hop // origin site through current holder
}

// SinkRef is a dangerous call receiving taint. Path holds the hops from
// the summarized function down to the sink, so propagated entries carry
// the whole call chain.
type SinkRef struct {
	Module   string
	Function string
	Line     int
	Callee   string
	Category Category
	CWE      string
	Path     []Hop
}

// Summary captures the taint behavior of a single function. The pass is
// deliberately flow-insensitive: branches, loops and kill sets are not
// modeled, so a variable tainted on any path stays tainted. That trades
// precision for simplicity and is a known source of false positives.
type Summary struct {
	Module   string
	Function string
	Params   []string

	TaintedLocals  map[string]*TaintInfo
	ParamSinks     map[string][]SinkRef
	LocalSinks     map[string][]SinkRef
	ReturnsTainted bool
	ReturnTaint    *TaintInfo

	// Raw per-statement facts kept for the interprocedural rounds.
	assignCalls   []assignCall
	directAssigns []directAssign
	sinkCalls     []sinkCall
	returns       []returnFact

	paramDeriv map[string]map[string]bool // var -> originating params
	sinkSeen   map[string]bool            // first-hit-wins per (var, call site)
}

type assignCall struct {
	Target string
	Callee string
	Line   int
}

type directAssign struct {
	Target string
	Names  []string
}

type sinkCall struct {
	Callee   string
	Args     []parser.Arg
	Line     int
	Category Category
	CWE      string
}

type returnFact struct {
	Name   string
	Callee string
	Line   int
}

// SummaryBuilder computes per-function taint summaries from a parsed file.
// Each function is independent, so callers may build summaries for many
// modules in parallel and merge afterwards.
type SummaryBuilder struct {
	catalog *Catalog
}

func NewSummaryBuilder(catalog *Catalog) *SummaryBuilder {
	return &SummaryBuilder{catalog: catalog}
}

// BuildForModule returns one summary per function plus one for module-level
// statements, in definition order.
func (sb *SummaryBuilder) BuildForModule(file *parser.File) []*Summary {
	scopes := []string{ModuleScope}
	params := map[string][]string{ModuleScope: nil}
	for _, def := range file.Definitions {
		if def.Kind == parser.KindClass {
			continue
		}
		scopes = append(scopes, def.Name)
		params[def.Name] = def.Params
	}

	byScope := make(map[string]*Summary, len(scopes))
	var summaries []*Summary
	for _, scope := range scopes {
		s := newSummary(file.Module, scope, params[scope])
		byScope[scope] = s
		summaries = append(summaries, s)
	}

	lookup := func(scope string) *Summary {
		if scope == "" {
			return byScope[ModuleScope]
		}
		return byScope[scope]
	}

	for _, asg := range file.Assignments {
		s := lookup(asg.Scope)
		if s == nil {
			continue
		}
		s.recordAssignment(asg, sb.catalog)
	}
	for _, call := range file.Calls {
		s := lookup(call.Scope)
		if s == nil {
			continue
		}
		if spec, ok := sb.catalog.MatchSink(call.Callee); ok {
			s.sinkCalls = append(s.sinkCalls, sinkCall{
				Callee:   call.Callee,
				Args:     call.Args,
				Line:     call.Location.Line,
				Category: spec.Category,
				CWE:      spec.CWE,
			})
		}
	}
	for _, ret := range file.Returns {
		s := lookup(ret.Scope)
		if s == nil {
			continue
		}
		rf := returnFact{Name: ret.Name, Line: ret.Location.Line}
		if ret.Call != nil {
			rf.Callee = ret.Call.Callee
		}
		s.returns = append(s.returns, rf)
	}

	for _, s := range summaries {
		s.settle(sb.catalog)
	}

	return summaries
}

func newSummary(module, function string, params []string) *Summary {
	s := &Summary{
		Module:        module,
		Function:      function,
		Params:        params,
		TaintedLocals: make(map[string]*TaintInfo),
		ParamSinks:    make(map[string][]SinkRef),
		LocalSinks:    make(map[string][]SinkRef),
		paramDeriv:    make(map[string]map[string]bool),
		sinkSeen:      make(map[string]bool),
	}
	for _, p := range params {
		s.paramDeriv[p] = map[string]bool{p: true}
	}
	return s
}

func (s *Summary) recordAssignment(asg parser.Assignment, catalog *Catalog) {
	if asg.Call != nil {
		if spec, ok := catalog.MatchSource(asg.Call.Callee); ok {
			for _, target := range asg.Targets {
				s.taintLocal(target, &TaintInfo{
					SourceCallee: asg.Call.Callee,
					Category:     spec.Category,
					Module:       s.Module,
					Function:     s.Function,
					Line:         asg.Location.Line,
					Path:         []Hop{{Module: s.Module, Function: s.Function, Line: asg.Location.Line}},
				})
			}
			return
		}
		for _, target := range asg.Targets {
			s.assignCalls = append(s.assignCalls, assignCall{
				Target: target,
				Callee: asg.Call.Callee,
				Line:   asg.Location.Line,
			})
		}
		return
	}

	for _, target := range asg.Targets {
		s.directAssigns = append(s.directAssigns, directAssign{
			Target: target,
			Names:  asg.Names,
		})
	}
}

// taintLocal marks a variable tainted. Taint never clears: reassignment
// after a sink hit does not retract anything.
func (s *Summary) taintLocal(name string, info *TaintInfo) bool {
	if _, ok := s.TaintedLocals[name]; ok {
		return false
	}
	s.TaintedLocals[name] = info
	return true
}

// settle runs local propagation to a fixpoint, then records sink hits and
// return taint. Re-run after interprocedural rounds add new facts.
func (s *Summary) settle(catalog *Catalog) bool {
	changed := false

	for {
		roundChanged := false
		for _, da := range s.directAssigns {
			for _, name := range da.Names {
				if info, ok := s.TaintedLocals[name]; ok {
					if s.taintLocal(da.Target, info) {
						roundChanged = true
					}
				}
				if params, ok := s.paramDeriv[name]; ok {
					if s.deriveFromParams(da.Target, params) {
						roundChanged = true
					}
				}
			}
		}
		if !roundChanged {
			break
		}
		changed = true
	}

	for _, sc := range s.sinkCalls {
		for _, arg := range sc.Args {
			if arg.Name == "" {
				// A source call fed straight into a sink, e.g.
				// os.system(input()), needs no variable at all.
				if arg.Call != "" {
					if spec, ok := catalog.MatchSource(arg.Call); ok {
						synth := arg.Call + "()"
						key := fmt.Sprintf("local:%s@%d", synth, sc.Line)
						if !s.sinkSeen[key] {
							s.sinkSeen[key] = true
							s.taintLocal(synth, &TaintInfo{
								SourceCallee: arg.Call,
								Category:     spec.Category,
								Module:       s.Module,
								Function:     s.Function,
								Line:         sc.Line,
								Path:         []Hop{{Module: s.Module, Function: s.Function, Line: sc.Line}},
							})
							s.LocalSinks[synth] = append(s.LocalSinks[synth], SinkRef{
								Module:   s.Module,
								Function: s.Function,
								Line:     sc.Line,
								Callee:   sc.Callee,
								Category: sc.Category,
								CWE:      sc.CWE,
								Path:     []Hop{{Module: s.Module, Function: s.Function, Line: sc.Line}},
							})
							changed = true
						}
					}
				}
				continue
			}
			key := fmt.Sprintf("%s@%d", arg.Name, sc.Line)
			ref := SinkRef{
				Module:   s.Module,
				Function: s.Function,
				Line:     sc.Line,
				Callee:   sc.Callee,
				Category: sc.Category,
				CWE:      sc.CWE,
				Path:     []Hop{{Module: s.Module, Function: s.Function, Line: sc.Line}},
			}

			if _, tainted := s.TaintedLocals[arg.Name]; tainted && !s.sinkSeen["local:"+key] {
				s.sinkSeen["local:"+key] = true
				s.LocalSinks[arg.Name] = append(s.LocalSinks[arg.Name], ref)
				changed = true
			}
			if params, ok := s.paramDeriv[arg.Name]; ok {
				for p := range params {
					pkey := fmt.Sprintf("param:%s:%s", p, key)
					if s.sinkSeen[pkey] {
						continue
					}
					s.sinkSeen[pkey] = true
					s.ParamSinks[p] = append(s.ParamSinks[p], ref)
					changed = true
				}
			}
		}
	}

	for _, rf := range s.returns {
		if s.ReturnsTainted {
			break
		}
		if rf.Name != "" {
			if info, ok := s.TaintedLocals[rf.Name]; ok {
				s.ReturnsTainted = true
				s.ReturnTaint = info
				changed = true
			}
			continue
		}
		if rf.Callee != "" {
			if spec, ok := catalog.MatchSource(rf.Callee); ok {
				s.ReturnsTainted = true
				s.ReturnTaint = &TaintInfo{
					SourceCallee: rf.Callee,
					Category:     spec.Category,
					Module:       s.Module,
					Function:     s.Function,
					Line:         rf.Line,
					Path:         []Hop{{Module: s.Module, Function: s.Function, Line: rf.Line}},
				}
				changed = true
			}
		}
	}

	return changed
}

func (s *Summary) deriveFromParams(name string, params map[string]bool) bool {
	existing := s.paramDeriv[name]
	if existing == nil {
		existing = make(map[string]bool)
		s.paramDeriv[name] = existing
	}
	changed := false
	for p := range params {
		if !existing[p] {
			existing[p] = true
			changed = true
		}
	}
	return changed
}

// TaintedParam reports whether name is (or derives from) a parameter.
func (s *Summary) paramsOf(name string) map[string]bool {
	return s.paramDeriv[name]
}
