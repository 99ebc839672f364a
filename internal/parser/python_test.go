package parser

import (
	"testing"
)

func parseSource(t *testing.T, code string) *File {
	t.Helper()
	p := NewParser(NewGrammarLoader())
	file, err := p.ParseFile("test.py", []byte(code))
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestPythonExtraction_Imports(t *testing.T) {
	code := `
import os
import sys as system
from auth.utils import login as auth_login, logout
from . import local_mod
from ..parent import thing
from helpers import *
`
	file := parseSource(t, code)

	if len(file.Imports) != 6 {
		t.Fatalf("Expected 6 imports, got %d", len(file.Imports))
	}

	if file.Imports[0].Module != "os" || file.Imports[0].Kind != ImportDirect {
		t.Errorf("import os: got %+v", file.Imports[0])
	}
	if file.Imports[1].Alias != "system" || file.Imports[1].Kind != ImportAliased {
		t.Errorf("import sys as system: got %+v", file.Imports[1])
	}

	fromImp := file.Imports[2]
	if fromImp.Module != "auth.utils" || fromImp.Kind != ImportFrom {
		t.Errorf("from auth.utils: got %+v", fromImp)
	}
	if len(fromImp.Items) != 2 {
		t.Fatalf("Expected 2 items, got %v", fromImp.Items)
	}
	if fromImp.Items[0].Name != "login" || fromImp.Items[0].Binding() != "auth_login" {
		t.Errorf("aliased item: got %+v", fromImp.Items[0])
	}
	if fromImp.Items[1].Binding() != "logout" {
		t.Errorf("plain item: got %+v", fromImp.Items[1])
	}

	rel := file.Imports[3]
	if rel.Kind != ImportRelative || rel.Level != 1 || rel.Module != "" {
		t.Errorf("from . import: got %+v", rel)
	}
	if len(rel.Items) != 1 || rel.Items[0].Name != "local_mod" {
		t.Errorf("relative items: got %v", rel.Items)
	}

	rel2 := file.Imports[4]
	if rel2.Level != 2 || rel2.Module != "parent" {
		t.Errorf("from ..parent: got %+v", rel2)
	}

	if !file.Imports[5].IsWildcard() {
		t.Errorf("wildcard import not detected: %+v", file.Imports[5])
	}
}

func TestPythonExtraction_Definitions(t *testing.T) {
	code := `
def handler(req, depth=3):
    """Handle one request."""
    return req

async def fetch(url):
    pass

class Repo:
    """Data access."""

    def save(self, row):
        def inner():
            pass
        return row
`
	file := parseSource(t, code)

	byName := make(map[string]Definition)
	for _, d := range file.Definitions {
		byName[d.Name] = d
	}

	h, ok := byName["handler"]
	if !ok || h.Kind != KindFunction {
		t.Fatalf("handler not indexed: %+v", file.Definitions)
	}
	if h.Docstring != "Handle one request." {
		t.Errorf("docstring = %q", h.Docstring)
	}
	if h.Signature != "handler(req, depth=3)" {
		t.Errorf("signature = %q", h.Signature)
	}
	if len(h.Params) != 2 || h.Params[0] != "req" || h.Params[1] != "depth" {
		t.Errorf("params = %v", h.Params)
	}
	if h.LineStart != 2 || h.LineEnd < h.LineStart {
		t.Errorf("line range = %d-%d", h.LineStart, h.LineEnd)
	}

	if f, ok := byName["fetch"]; !ok || f.Kind != KindAsyncFunction {
		t.Errorf("async def not indexed as async_function: %+v", f)
	}

	if c, ok := byName["Repo"]; !ok || c.Kind != KindClass {
		t.Errorf("class not indexed: %+v", c)
	}
	if m, ok := byName["Repo.save"]; !ok || m.Kind != KindMethod {
		t.Errorf("method not indexed as Repo.save: %+v", m)
	}

	if _, ok := byName["inner"]; ok {
		t.Error("nested function should not be indexed")
	}
	if _, ok := byName["Repo.save.inner"]; ok {
		t.Error("nested function should not be indexed under method")
	}
}

func TestPythonExtraction_CallsAssignmentsReturns(t *testing.T) {
	code := `
def run(q):
    cursor.execute(q)

def read_input():
    data = input()
    return data

def main():
    run(read_input())
    x = read_input()
    y = x
    return transform(y)
`
	file := parseSource(t, code)

	var sinkCall *Call
	for i := range file.Calls {
		if file.Calls[i].Callee == "cursor.execute" {
			sinkCall = &file.Calls[i]
		}
	}
	if sinkCall == nil {
		t.Fatal("cursor.execute call not extracted")
	}
	if sinkCall.Scope != "run" {
		t.Errorf("sink scope = %q", sinkCall.Scope)
	}
	if len(sinkCall.Args) != 1 || sinkCall.Args[0].Name != "q" {
		t.Errorf("sink args = %+v", sinkCall.Args)
	}

	var nested *Call
	for i := range file.Calls {
		if file.Calls[i].Callee == "run" {
			nested = &file.Calls[i]
		}
	}
	if nested == nil {
		t.Fatal("run call not extracted")
	}
	if len(nested.Args) != 1 || nested.Args[0].Call != "read_input" {
		t.Errorf("nested call arg = %+v", nested.Args)
	}
	if nested.Args[0].Reduced() != ExprPlaceholder {
		t.Errorf("nested call should reduce to placeholder, got %q", nested.Args[0].Reduced())
	}

	foundSourceAssign := false
	foundNameAssign := false
	for _, asg := range file.Assignments {
		if len(asg.Targets) == 1 && asg.Targets[0] == "data" && asg.Call != nil && asg.Call.Callee == "input" {
			foundSourceAssign = true
		}
		if len(asg.Targets) == 1 && asg.Targets[0] == "y" && len(asg.Names) == 1 && asg.Names[0] == "x" {
			foundNameAssign = true
		}
	}
	if !foundSourceAssign {
		t.Errorf("data = input() not extracted: %+v", file.Assignments)
	}
	if !foundNameAssign {
		t.Errorf("y = x not extracted: %+v", file.Assignments)
	}

	foundBareReturn := false
	foundCallReturn := false
	for _, ret := range file.Returns {
		if ret.Scope == "read_input" && ret.Name == "data" {
			foundBareReturn = true
		}
		if ret.Scope == "main" && ret.Call != nil && ret.Call.Callee == "transform" {
			foundCallReturn = true
		}
	}
	if !foundBareReturn {
		t.Errorf("return data not extracted: %+v", file.Returns)
	}
	if !foundCallReturn {
		t.Errorf("return transform(y) not extracted: %+v", file.Returns)
	}
}

func TestParser_UnsupportedPath(t *testing.T) {
	p := NewParser(NewGrammarLoader())
	if p.IsSupportedPath("notes.txt") {
		t.Error("txt should not be supported")
	}
	if _, err := p.ParseFile("notes.txt", []byte("hello")); err == nil {
		t.Error("expected error for unsupported language")
	}
}
