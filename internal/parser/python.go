package parser

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// PythonExtractor lowers a tree-sitter parse tree into the normalized File
// shape the analysis stages consume. Only top-level definitions are indexed;
// a nested function is owned by its enclosing definition and its statements
// are attributed to that definition's scope.
type PythonExtractor struct{}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		ParsedAt: time.Now(),
	}

	e.walk(root, source, file, "", "")

	return file, nil
}

func (e *PythonExtractor) walk(node *sitter.Node, source []byte, file *File, scope, class string) {
	switch node.Kind() {
	case "import_statement":
		e.extractImport(node, source, file)
		return

	case "import_from_statement":
		e.extractFromImport(node, source, file)
		return

	case "function_definition":
		e.extractFunction(node, source, file, scope, class)
		return

	case "class_definition":
		e.extractClass(node, source, file, scope, class)
		return

	case "assignment", "augmented_assignment":
		e.extractAssignment(node, source, file, scope)

	case "call":
		e.extractCall(node, source, file, scope)

	case "return_statement":
		e.extractReturn(node, source, file, scope)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), source, file, scope, class)
	}
}

func (e *PythonExtractor) extractImport(node *sitter.Node, source []byte, file *File) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		switch child.Kind() {
		case "dotted_name", "identifier":
			module := e.getText(child, source)
			file.Imports = append(file.Imports, Import{
				Module:   module,
				Raw:      e.getText(node, source),
				Kind:     ImportDirect,
				Location: e.getLocation(child, file.Path),
			})

		case "aliased_import":
			var module, alias string
			if name := child.ChildByFieldName("name"); name != nil {
				module = e.getText(name, source)
			}
			if al := child.ChildByFieldName("alias"); al != nil {
				alias = e.getText(al, source)
			}
			file.Imports = append(file.Imports, Import{
				Module:   module,
				Raw:      e.getText(node, source),
				Alias:    alias,
				Kind:     ImportAliased,
				Location: e.getLocation(child, file.Path),
			})
		}
	}
}

func (e *PythonExtractor) extractFromImport(node *sitter.Node, source []byte, file *File) {
	imp := Import{
		Raw:      e.getText(node, source),
		Kind:     ImportFrom,
		Location: e.getLocation(node, file.Path),
	}

	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		switch child.Kind() {
		case "import":
			afterImport = true

		case "relative_import":
			text := e.getText(child, source)
			dots := len(text) - len(strings.TrimLeft(text, "."))
			imp.Kind = ImportRelative
			imp.Level = dots
			imp.Module = strings.TrimLeft(text, ".")

		case "dotted_name", "identifier":
			if !afterImport {
				imp.Module = e.getText(child, source)
			} else {
				imp.Items = append(imp.Items, ImportItem{Name: e.getText(child, source)})
			}

		case "aliased_import":
			item := ImportItem{}
			if name := child.ChildByFieldName("name"); name != nil {
				item.Name = e.getText(name, source)
			}
			if al := child.ChildByFieldName("alias"); al != nil {
				item.Alias = e.getText(al, source)
			}
			if item.Name != "" {
				imp.Items = append(imp.Items, item)
			}

		case "wildcard_import":
			if imp.Kind != ImportRelative {
				imp.Kind = ImportWildcard
			}
			imp.Items = append(imp.Items, ImportItem{Name: "*"})
		}
	}

	file.Imports = append(file.Imports, imp)
}

func (e *PythonExtractor) extractFunction(node *sitter.Node, source []byte, file *File, scope, class string) {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = e.getText(n, source)
	}
	if name == "" {
		return
	}

	body := node.ChildByFieldName("body")

	// Nested functions are not indexed separately.
	if scope != "" {
		if body != nil {
			e.walkChildren(body, source, file, scope, "")
		}
		return
	}

	kind := KindFunction
	if node.ChildCount() > 0 && node.Child(0).Kind() == "async" {
		kind = KindAsyncFunction
	}

	qualified := name
	if class != "" {
		qualified = class + "." + name
		kind = KindMethod
	}

	def := Definition{
		Name:      qualified,
		Kind:      kind,
		LineStart: int(node.StartPosition().Row) + 1,
		LineEnd:   int(node.EndPosition().Row) + 1,
		Signature: e.signature(node, source, name),
		Params:    e.paramNames(node, source),
	}
	if body != nil {
		def.Docstring = e.docstring(body, source)
	}
	file.Definitions = append(file.Definitions, def)

	if body != nil {
		e.walkChildren(body, source, file, qualified, "")
	}
}

func (e *PythonExtractor) extractClass(node *sitter.Node, source []byte, file *File, scope, class string) {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = e.getText(n, source)
	}
	body := node.ChildByFieldName("body")

	// Nested classes fold into the enclosing scope like nested functions.
	if scope != "" || class != "" || name == "" {
		if body != nil {
			e.walkChildren(body, source, file, scope, "")
		}
		return
	}

	def := Definition{
		Name:      name,
		Kind:      KindClass,
		LineStart: int(node.StartPosition().Row) + 1,
		LineEnd:   int(node.EndPosition().Row) + 1,
		Signature: e.signature(node, source, name),
	}
	if body != nil {
		def.Docstring = e.docstring(body, source)
	}
	file.Definitions = append(file.Definitions, def)

	if body != nil {
		e.walkChildren(body, source, file, "", name)
	}
}

func (e *PythonExtractor) walkChildren(node *sitter.Node, source []byte, file *File, scope, class string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), source, file, scope, class)
	}
}

func (e *PythonExtractor) extractAssignment(node *sitter.Node, source []byte, file *File, scope string) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}

	asg := Assignment{
		Scope:    scope,
		Location: e.getLocation(node, file.Path),
	}
	e.collectIdentifiers(left, source, &asg.Targets)
	if len(asg.Targets) == 0 {
		return
	}

	if right.Kind() == "call" {
		asg.Call = e.buildCall(right, source, file.Path, scope)
	} else {
		e.collectIdentifiers(right, source, &asg.Names)
	}

	file.Assignments = append(file.Assignments, asg)
}

func (e *PythonExtractor) extractCall(node *sitter.Node, source []byte, file *File, scope string) {
	call := e.buildCall(node, source, file.Path, scope)
	if call == nil {
		return
	}
	file.Calls = append(file.Calls, *call)
}

func (e *PythonExtractor) buildCall(node *sitter.Node, source []byte, filePath, scope string) *Call {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	kind := fn.Kind()
	if kind != "identifier" && kind != "attribute" {
		return nil
	}

	call := &Call{
		Callee:   e.getText(fn, source),
		Scope:    scope,
		Location: e.getLocation(node, filePath),
	}

	args := node.ChildByFieldName("arguments")
	if args != nil {
		for i := uint(0); i < args.ChildCount(); i++ {
			child := args.Child(i)
			switch child.Kind() {
			case "(", ")", ",", "comment", "keyword_argument",
				"list_splat", "dictionary_splat":
				continue
			}
			arg := Arg{Raw: e.getText(child, source)}
			switch child.Kind() {
			case "identifier":
				arg.Name = arg.Raw
			case "call":
				if callee := child.ChildByFieldName("function"); callee != nil {
					arg.Call = e.getText(callee, source)
				}
			}
			call.Args = append(call.Args, arg)
		}
	}

	return call
}

func (e *PythonExtractor) extractReturn(node *sitter.Node, source []byte, file *File, scope string) {
	ret := Return{
		Scope:    scope,
		Location: e.getLocation(node, file.Path),
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "identifier":
			ret.Name = e.getText(child, source)
		case "call":
			ret.Call = e.buildCall(child, source, file.Path, scope)
		}
	}

	file.Returns = append(file.Returns, ret)
}

func (e *PythonExtractor) collectIdentifiers(node *sitter.Node, source []byte, out *[]string) {
	if node.Kind() == "identifier" {
		*out = append(*out, e.getText(node, source))
		return
	}
	// Attribute targets (self.x = ...) keep only the full dotted text's head
	// out of scope; subscript and attribute writes are not tracked.
	if node.Kind() == "attribute" || node.Kind() == "subscript" || node.Kind() == "call" {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		e.collectIdentifiers(node.Child(i), source, out)
	}
}

func (e *PythonExtractor) paramNames(node *sitter.Node, source []byte) []string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var names []string
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "identifier":
			names = append(names, e.getText(child, source))
		case "typed_parameter", "default_parameter", "typed_default_parameter",
			"list_splat_pattern", "dictionary_splat_pattern":
			if id := e.firstIdentifier(child, source); id != "" {
				names = append(names, id)
			}
		}
	}
	return names
}

func (e *PythonExtractor) firstIdentifier(node *sitter.Node, source []byte) string {
	if node.Kind() == "identifier" {
		return e.getText(node, source)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if id := e.firstIdentifier(node.Child(i), source); id != "" {
			return id
		}
	}
	return ""
}

func (e *PythonExtractor) signature(node *sitter.Node, source []byte, name string) string {
	if params := node.ChildByFieldName("parameters"); params != nil {
		return name + e.getText(params, source)
	}
	return name
}

func (e *PythonExtractor) docstring(body *sitter.Node, source []byte) string {
	if body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Kind() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str.Kind() != "string" {
		return ""
	}
	text := e.getText(str, source)
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

func (e *PythonExtractor) getLocation(node *sitter.Node, filePath string) Location {
	return Location{
		File:   filePath,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

func (e *PythonExtractor) getText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
