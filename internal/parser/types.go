package parser

import (
	"time"
)

type File struct {
	Path        string
	Module      string // Fully qualified module name, set by the graph builder
	Imports     []Import
	Definitions []Definition
	Calls       []Call
	Assignments []Assignment
	Returns     []Return
	ParsedAt    time.Time
}

type ImportKind int

const (
	ImportDirect ImportKind = iota
	ImportFrom
	ImportRelative
	ImportWildcard
	ImportAliased
)

func (k ImportKind) String() string {
	switch k {
	case ImportDirect:
		return "direct"
	case ImportFrom:
		return "from"
	case ImportRelative:
		return "relative"
	case ImportWildcard:
		return "wildcard"
	case ImportAliased:
		return "aliased"
	default:
		return "unknown"
	}
}

type Import struct {
	Module   string // Dotted module name as written (dots stripped for relative imports)
	Raw      string // Original statement text
	Alias    string // For "import X as Y"
	Items    []ImportItem
	Kind     ImportKind
	Level    int // Relative import dot count, 0 for absolute
	Location Location
}

// IsWildcard reports whether the statement imports every public name of
// its target ("from X import *"). Relative wildcard imports keep the
// relative kind, so this checks items rather than Kind.
func (i Import) IsWildcard() bool {
	if i.Kind == ImportWildcard {
		return true
	}
	for _, it := range i.Items {
		if it.Name == "*" {
			return true
		}
	}
	return false
}

type ImportItem struct {
	Name  string
	Alias string
}

// Binding is the name the item introduces into the importing module.
func (it ImportItem) Binding() string {
	if it.Alias != "" {
		return it.Alias
	}
	return it.Name
}

type DefinitionKind int

const (
	KindFunction DefinitionKind = iota
	KindAsyncFunction
	KindClass
	KindMethod
)

func (k DefinitionKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindAsyncFunction:
		return "async_function"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

type Definition struct {
	Name      string // Qualified as Class.method for methods
	Kind      DefinitionKind
	LineStart int
	LineEnd   int
	Docstring string
	Signature string
	Params    []string
}

// Arg is a positional call argument reduced to something the cross-module
// call graph can reason about: a bare variable name, a nested call, or an
// opaque expression.
type Arg struct {
	Name string // Bare identifier, "" otherwise
	Call string // Callee text when the argument is itself a call
	Raw  string
}

const ExprPlaceholder = "<expr>"

// Reduced collapses the argument to a bare name or the opaque placeholder.
func (a Arg) Reduced() string {
	if a.Name != "" {
		return a.Name
	}
	return ExprPlaceholder
}

type Call struct {
	Callee   string // Dotted callee text, e.g. "cursor.execute"
	Args     []Arg
	Scope    string // Enclosing top-level definition, "" at module level
	Location Location
}

type Assignment struct {
	Targets  []string
	Call     *Call    // Set when the right-hand side is a call
	Names    []string // Bare identifiers on the right-hand side otherwise
	Scope    string
	Location Location
}

type Return struct {
	Name     string // Bare identifier returned, "" otherwise
	Call     *Call  // Set when a call's result is returned
	Scope    string
	Location Location
}

type Location struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
}
