package graph

import "testing"

func TestResolveSymbol_Local(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"app.py": "def handler():\n    pass\n",
	}, Options{})

	res, err := g.ResolveSymbol("app", "handler")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Module != "app" {
		t.Fatalf("resolution = %+v, want app", res)
	}
	if res.Definition.Name != "handler" {
		t.Errorf("definition = %q", res.Definition.Name)
	}
}

func TestResolveSymbol_ImportedAndAliased(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"utils.py": "def helper():\n    pass\n",
		"app.py":   "from utils import helper as h\nimport utils as u\n",
	}, Options{})

	res, err := g.ResolveSymbol("app", "h")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Module != "utils" || res.Definition.Name != "helper" {
		t.Fatalf("aliased item resolution = %+v", res)
	}

	// dotted access through the module alias
	res, err = g.ResolveSymbol("app", "u.helper")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Module != "utils" {
		t.Fatalf("dotted resolution = %+v", res)
	}
}

func TestResolveSymbol_ReExportChain(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"pkg/__init__.py": "from pkg.impl import helper\n",
		"pkg/impl.py":     "def helper():\n    pass\n",
		"app.py":          "from pkg import helper\n",
	}, Options{})

	res, err := g.ResolveSymbol("app", "helper")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Module != "pkg.impl" {
		t.Fatalf("re-export should land on the defining module, got %+v", res)
	}
}

func TestResolveSymbol_Wildcard(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"utils.py": "def helper():\n    pass\n",
		"app.py":   "from utils import *\n",
	}, Options{})

	res, err := g.ResolveSymbol("app", "helper")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Module != "utils" {
		t.Fatalf("wildcard resolution = %+v", res)
	}
}

func TestResolveSymbol_Unknown(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"app.py": "x = 1\n",
	}, Options{})

	res, err := g.ResolveSymbol("app", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Errorf("resolution = %+v, want nil", res)
	}
}

func TestResolveSymbol_ReExportCycleTerminates(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"a.py": "from b import thing\n",
		"b.py": "from a import thing\n",
	}, Options{})

	res, err := g.ResolveSymbol("a", "thing")
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Errorf("mutual re-export resolved to %+v, want nil", res)
	}
}

func TestResolveCallee_CrossModule(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"db.py":  "def run_query(sql):\n    pass\n",
		"app.py": "from db import run_query\nimport db\n",
	}, Options{})

	mod, fn, ok := g.ResolveCallee("app", "run_query")
	if !ok || mod != "db" || fn != "run_query" {
		t.Errorf("bare callee = %s.%s %v, want db.run_query", mod, fn, ok)
	}

	mod, fn, ok = g.ResolveCallee("app", "db.run_query")
	if !ok || mod != "db" || fn != "run_query" {
		t.Errorf("dotted callee = %s.%s %v, want db.run_query", mod, fn, ok)
	}

	if _, _, ok := g.ResolveCallee("app", "os.system"); ok {
		t.Error("external callee should not resolve")
	}
}

func TestResolveSymbol_RequiresBuiltGraph(t *testing.T) {
	g := &DependencyGraph{}
	if _, err := g.ResolveSymbol("app", "x"); err == nil {
		t.Error("expected precondition error")
	}
}
