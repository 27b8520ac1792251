package dag

import (
	"strings"
	"testing"

	"elang/internal/diag"
)

func batchesToNames(idx ModuleIndex, batches [][]ModuleID) [][]string {
	out := make([][]string, len(batches))
	for i, batch := range batches {
		out[i] = idx.Names(batch)
	}
	return out
}

func TestBuildIndexIncludesImports(t *testing.T) {
	nodes := []ModuleNode{
		{Name: "main", Imports: []string{"math", "util"}},
		{Name: "util"},
	}

	idx := BuildIndex(nodes)

	if len(idx.IDToName) != 3 {
		t.Fatalf("unexpected module count: %d", len(idx.IDToName))
	}

	wantNames := []string{"main", "math", "util"}
	for i, want := range wantNames {
		if got := idx.IDToName[i]; got != want {
			t.Fatalf("idx.IDToName[%d] = %q, want %q", i, got, want)
		}
		if id, ok := idx.NameToID[want]; !ok || int(id) != i {
			t.Fatalf("idx.NameToID[%q] = %v, want %d", want, id, i)
		}
	}
}

func TestBuildGraphReportsMissingModules(t *testing.T) {
	bagApp := diag.NewBag(10)
	bagCore := diag.NewBag(10)

	nodes := []ModuleNode{
		{Name: "app", Imports: []string{"core", "util"}, Reporter: diag.BagReporter{Bag: bagApp}},
		{Name: "core", Imports: []string{"util"}, Reporter: diag.BagReporter{Bag: bagCore}},
	}
	idx := BuildIndex(nodes)
	graph, slots := BuildGraph(idx, nodes)

	appID := idx.NameToID["app"]
	coreID := idx.NameToID["core"]
	utilID := idx.NameToID["util"]

	appDeps := graph.Deps[int(appID)]
	if len(appDeps) != 2 || appDeps[0] != coreID || appDeps[1] != utilID {
		t.Fatalf("app deps = %v, want [%v %v]", appDeps, coreID, utilID)
	}
	if users := graph.Users[int(coreID)]; len(users) != 1 || users[0] != appID {
		t.Fatalf("core users = %v, want [%v]", users, appID)
	}
	if !graph.Present[int(appID)] || !graph.Present[int(coreID)] || graph.Present[int(utilID)] {
		t.Fatalf("unexpected Present flags: %v", graph.Present)
	}

	if bagApp.Len() != 1 || bagApp.Items()[0].Code != diag.ProjUnresolvedImport {
		t.Fatalf("app diagnostics = %v", bagApp.Items())
	}
	if bagCore.Len() != 1 || bagCore.Items()[0].Code != diag.ProjUnresolvedImport {
		t.Fatalf("core diagnostics = %v", bagCore.Items())
	}
	if !slots[int(appID)].Broken || !slots[int(coreID)].Broken {
		t.Fatalf("modules with missing imports are broken")
	}
}

func TestBuildGraphDuplicateModules(t *testing.T) {
	bagA := diag.NewBag(10)
	bagB := diag.NewBag(10)

	nodes := []ModuleNode{
		{Name: "dup", Imports: []string{"x"}, Reporter: diag.BagReporter{Bag: bagA}},
		{Name: "dup", Reporter: diag.BagReporter{Bag: bagB}},
		{Name: "x"},
	}

	idx := BuildIndex(nodes)
	graph, slots := BuildGraph(idx, nodes)

	if !graph.Present[idx.NameToID["dup"]] {
		t.Fatalf("expected module to be present")
	}
	if bagA.Len() != 0 {
		t.Fatalf("unexpected diagnostics for first module: %v", bagA.Items())
	}
	if bagB.Len() != 1 || bagB.Items()[0].Code != diag.ProjDuplicateName {
		t.Fatalf("duplicate diagnostics = %v", bagB.Items())
	}

	// the slot keeps the first declaration
	slot := slots[int(idx.NameToID["dup"])]
	if !slot.Present || len(slot.Node.Imports) != 1 {
		t.Fatalf("expected slot to hold the first module")
	}
}

func TestToposortKahnBatches(t *testing.T) {
	nodes := []ModuleNode{
		{Name: "b", Imports: []string{"c"}},
		{Name: "a"},
		{Name: "c"},
		{Name: "d", Imports: []string{"b", "a"}},
	}

	idx := BuildIndex(nodes)
	graph, _ := BuildGraph(idx, nodes)

	topo := ToposortKahn(graph)
	if topo.Cyclic {
		t.Fatalf("expected acyclic graph")
	}

	orderNames := idx.Names(topo.Order)
	wantOrder := []string{"a", "c", "b", "d"}
	if len(orderNames) != len(wantOrder) {
		t.Fatalf("order = %v, want %v", orderNames, wantOrder)
	}
	for i, want := range wantOrder {
		if orderNames[i] != want {
			t.Fatalf("order[%d] = %q, want %q", i, orderNames[i], want)
		}
	}

	batches := batchesToNames(idx, topo.Batches)
	wantBatches := [][]string{{"a", "c"}, {"b"}, {"d"}}
	if len(batches) != len(wantBatches) {
		t.Fatalf("batches = %v, want %v", batches, wantBatches)
	}
	for i := range wantBatches {
		if len(batches[i]) != len(wantBatches[i]) {
			t.Fatalf("batch[%d] len = %d, want %d", i, len(batches[i]), len(wantBatches[i]))
		}
		for j, want := range wantBatches[i] {
			if batches[i][j] != want {
				t.Fatalf("batch[%d][%d] = %q, want %q", i, j, batches[i][j], want)
			}
		}
	}
}

func TestReportCycles(t *testing.T) {
	bagA := diag.NewBag(10)
	bagB := diag.NewBag(10)
	bagSelf := diag.NewBag(10)

	nodes := []ModuleNode{
		{Name: "a", Imports: []string{"b"}, Reporter: diag.BagReporter{Bag: bagA}},
		{Name: "b", Imports: []string{"a"}, Reporter: diag.BagReporter{Bag: bagB}},
		{Name: "self", Imports: []string{"self"}, Reporter: diag.BagReporter{Bag: bagSelf}},
	}

	idx := BuildIndex(nodes)
	graph, slots := BuildGraph(idx, nodes)

	topo := ToposortKahn(graph)
	if !topo.Cyclic || len(topo.Cycles) != 2 {
		t.Fatalf("expected cycle with two modules, got %+v", topo)
	}

	ReportCycles(idx, slots, topo)

	if bagA.Len() != 1 || bagA.Items()[0].Code != diag.ProjImportCycle {
		t.Fatalf("module a diagnostics = %v", bagA.Items())
	}
	if bagB.Len() != 1 || bagB.Items()[0].Code != diag.ProjImportCycle {
		t.Fatalf("module b diagnostics = %v", bagB.Items())
	}
	if bagSelf.Len() != 1 || bagSelf.Items()[0].Code != diag.ProjImportCycle {
		t.Fatalf("self import diagnostics = %v", bagSelf.Items())
	}
	for _, name := range []string{"a", "b", "self"} {
		if !slots[int(idx.NameToID[name])].Broken {
			t.Fatalf("%s should be broken", name)
		}
	}
}

func TestReportBrokenDepsPropagates(t *testing.T) {
	bag := diag.NewBag(10)
	r := diag.BagReporter{Bag: bag}
	nodes := []ModuleNode{
		{Name: "base", Broken: true, Reporter: r, FirstErr: &diag.Diagnostic{Message: "boom"}},
		{Name: "mid", Imports: []string{"base"}, Reporter: r},
		{Name: "top", Imports: []string{"mid"}, Reporter: r},
		{Name: "other", Reporter: r},
	}
	idx := BuildIndex(nodes)
	graph, slots := BuildGraph(idx, nodes)
	topo := ToposortKahn(graph)
	ReportBrokenDeps(idx, graph, slots, topo)

	for name, want := range map[string]bool{"base": true, "mid": true, "top": true, "other": false} {
		if got := slots[int(idx.NameToID[name])].Broken; got != want {
			t.Fatalf("%s broken = %v, want %v", name, got, want)
		}
	}
	items := bag.Items()
	if len(items) != 2 || items[0].Module != "mid" || items[0].Code != diag.ModDependencyFailed {
		t.Fatalf("unexpected diagnostics %v", items)
	}
	if len(items[0].Notes) != 1 || items[1].Module != "top" {
		t.Fatalf("unexpected notes or order %v", items)
	}
	if items[1].Notes[0] != "first error in dependency: boom" {
		t.Fatalf("root cause must reach transitive users, got %q", items[1].Notes[0])
	}
}

func TestCyclePathSeparatesWaitingModules(t *testing.T) {
	bag := diag.NewBag(10)
	r := diag.BagReporter{Bag: bag}
	nodes := []ModuleNode{
		{Name: "a", Imports: []string{"b"}, Reporter: r},
		{Name: "b", Imports: []string{"c"}, Reporter: r},
		{Name: "c", Imports: []string{"b"}, Reporter: r},
		{Name: "leaf", Reporter: r},
	}
	idx := BuildIndex(nodes)
	graph, slots := BuildGraph(idx, nodes)
	topo := ToposortKahn(graph)

	if got := idx.Names(topo.Order); len(got) != 1 || got[0] != "leaf" {
		t.Fatalf("order = %v", got)
	}
	if got := idx.Names(topo.Cycles); len(got) != 3 {
		t.Fatalf("cycles = %v", got)
	}
	if got := strings.Join(idx.Names(topo.Path), " -> "); got != "b -> c -> b" {
		t.Fatalf("path = %q", got)
	}

	ReportCycles(idx, slots, topo)
	items := bag.Items()
	if len(items) != 3 {
		t.Fatalf("diagnostics = %v", items)
	}
	if !strings.Contains(items[0].Message, `"a" depends on an import cycle: b -> c -> b`) {
		t.Fatalf("waiting module message = %q", items[0].Message)
	}
	if !strings.Contains(items[1].Message, `"b" participates`) {
		t.Fatalf("cycle member message = %q", items[1].Message)
	}
}
