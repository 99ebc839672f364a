package graph

import "testing"

func cyclicFixture(t *testing.T) (*DependencyGraph, *BuildResult) {
	t.Helper()
	return buildTree(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import c\n",
		"c.py": "import a\n",
	}, Options{})
}

func TestDetectCycles_FindsLoop(t *testing.T) {
	g, result := cyclicFixture(t)

	if len(result.Cycles) != 1 {
		t.Fatalf("cycles at build time = %d, want 1", len(result.Cycles))
	}

	cycles, err := g.DetectCycles()
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 1 {
		t.Fatalf("cycles = %d, want exactly 1", len(cycles))
	}
	c := cycles[0]
	if len(c.Modules) != 3 {
		t.Errorf("cycle length = %d, want 3: %v", len(c.Modules), c.Modules)
	}
	if c.Severity != "warning" {
		t.Errorf("severity = %q", c.Severity)
	}
	if len(c.Files) != len(c.Modules) {
		t.Errorf("files/modules mismatch: %d vs %d", len(c.Files), len(c.Modules))
	}
}

func TestDetectCycles_CleanGraph(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import c\n",
		"c.py": "x = 1\n",
	}, Options{})

	cycles, err := g.DetectCycles()
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 0 {
		t.Errorf("cycles = %v, want none", cycles)
	}
}

func TestTopologicalOrder_Linearizes(t *testing.T) {
	g, _ := buildTree(t, map[string]string{
		"a.py": "import b\nimport c\n",
		"b.py": "import c\n",
		"c.py": "x = 1\n",
	}, Options{})

	order, complete, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	if !complete {
		t.Error("acyclic graph reported incomplete")
	}
	pos := make(map[string]int, len(order))
	for i, m := range order {
		pos[m] = i
	}
	if !(pos["a"] < pos["b"] && pos["b"] < pos["c"]) {
		t.Errorf("order %v does not respect import direction", order)
	}
}

func TestTopologicalOrder_CyclicResidue(t *testing.T) {
	g, _ := cyclicFixture(t)

	order, complete, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	if complete {
		t.Error("cyclic graph reported complete")
	}
	if len(order) != g.ModuleCount() {
		t.Errorf("order covers %d of %d modules", len(order), g.ModuleCount())
	}

	again, _, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	for i := range order {
		if order[i] != again[i] {
			t.Fatalf("non-deterministic order: %v vs %v", order, again)
		}
	}
}

func TestDetect_RequiresBuiltGraph(t *testing.T) {
	g := &DependencyGraph{}
	if _, err := g.DetectCycles(); err == nil {
		t.Error("DetectCycles on unbuilt graph should error")
	}
	if _, _, err := g.TopologicalOrder(); err == nil {
		t.Error("TopologicalOrder on unbuilt graph should error")
	}
}
