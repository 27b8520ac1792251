package dag

import (
	"fmt"
	"slices"
	"strings"

	"elang/internal/diag"
)

// Graph links modules to their imports. Kahn's algorithm walks it from the
// modules without present dependencies, so orders come out dependencies-first.
type Graph struct {
	Deps    [][]ModuleID // Deps[from] = imported modules
	Users   [][]ModuleID // Users[to] = modules importing it
	Indeg   []int        // число присутствующих зависимостей (Kahn)
	Present []bool       // признак, что модуль реально существует (а не только импортируется)
}

type ModuleNode struct {
	Name     string
	Imports  []string
	Reporter diag.Reporter
	Broken   bool
	FirstErr *diag.Diagnostic
}

type ModuleSlot struct {
	Node    ModuleNode
	Present bool
	Broken  bool
}

func BuildGraph(idx ModuleIndex, nodes []ModuleNode) (Graph, []ModuleSlot) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Deps:    make([][]ModuleID, nodeCount),
		Users:   make([][]ModuleID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}
	slots := make([]ModuleSlot, nodeCount)
	for i, name := range idx.IDToName {
		slots[i].Node.Name = name
	}

	for _, node := range nodes {
		if node.Name == "" {
			continue
		}
		id, ok := idx.NameToID[node.Name]
		if !ok {
			// не должно происходить, индекс строится на тех же узлах
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			report(node.Reporter, diag.ProjDuplicateName, node.Name,
				fmt.Sprintf("duplicate module %q", node.Name))
			continue
		}
		slot.Node = node
		slot.Present = true
		slot.Broken = node.Broken
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Node.Imports) == 0 {
			continue
		}
		seen := make(map[ModuleID]struct{}, len(slot.Node.Imports))
		for _, dep := range slot.Node.Imports {
			if dep == "" {
				continue
			}
			toID := idx.NameToID[dep]
			if ModuleID(from) == toID {
				report(slot.Node.Reporter, diag.ProjImportCycle, slot.Node.Name,
					fmt.Sprintf("module %q imports itself", slot.Node.Name))
				slot.Broken = true
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}

			g.Deps[from] = append(g.Deps[from], toID)
			if g.Present[int(toID)] {
				g.Users[int(toID)] = append(g.Users[int(toID)], ModuleID(from))
				g.Indeg[from]++
			} else {
				report(slot.Node.Reporter, diag.ProjUnresolvedImport, slot.Node.Name,
					fmt.Sprintf("module %q imports missing module %q", slot.Node.Name, dep))
				slot.Broken = true
			}
		}
		if len(g.Deps[from]) > 1 {
			slices.Sort(g.Deps[from])
		}
	}

	return g, slots
}

// ReportCycles marks every module left unsorted as broken. Modules on the
// found cycle and modules that only wait for it get different messages.
func ReportCycles(idx ModuleIndex, slots []ModuleSlot, topo *Topo) {
	if !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	path := topo.Path
	if len(path) == 0 {
		path = topo.Cycles
	}
	summary := strings.Join(idx.Names(path), " -> ")

	for _, id := range topo.Cycles {
		slot := &slots[int(id)]
		if !slot.Present {
			continue
		}
		slot.Broken = true
		msg := fmt.Sprintf("module %q participates in an import cycle: %s", slot.Node.Name, summary)
		if !slices.Contains(path, id) {
			msg = fmt.Sprintf("module %q depends on an import cycle: %s", slot.Node.Name, summary)
		}
		report(slot.Node.Reporter, diag.ProjImportCycle, slot.Node.Name, msg)
	}
}

// ReportBrokenDeps marks every module importing a broken one as broken too,
// transitively, and reports the first failed dependency of each.
func ReportBrokenDeps(idx ModuleIndex, g Graph, slots []ModuleSlot, topo *Topo) {
	for _, id := range topo.Order {
		if slots[int(id)].Broken {
			continue
		}
		if dep, ok := BrokenDep(g, slots, id); ok {
			MarkDependencyFailed(idx, slots, id, dep)
		}
	}
}

// BrokenDep returns the first present dependency of id that is broken.
func BrokenDep(g Graph, slots []ModuleSlot, id ModuleID) (ModuleID, bool) {
	for _, dep := range g.Deps[int(id)] {
		depSlot := slots[int(dep)]
		if depSlot.Present && depSlot.Broken {
			return dep, true
		}
	}
	return 0, false
}

// MarkDependencyFailed marks id broken because of dep and reports it.
func MarkDependencyFailed(idx ModuleIndex, slots []ModuleSlot, id, dep ModuleID) {
	slot := &slots[int(id)]
	depSlot := slots[int(dep)]
	slot.Broken = true
	d := diag.NewError(diag.ModDependencyFailed, slot.Node.Name,
		fmt.Sprintf("dependency module %q has errors", idx.IDToName[int(dep)]))
	if depSlot.Node.FirstErr != nil {
		d = d.WithNote("first error in dependency: " + depSlot.Node.FirstErr.Message)
	}
	// корневая причина протягивается по цепочке зависимых
	if slot.Node.FirstErr == nil {
		slot.Node.FirstErr = depSlot.Node.FirstErr
	}
	if slot.Node.FirstErr == nil {
		slot.Node.FirstErr = &d
	}
	if slot.Node.Reporter != nil {
		slot.Node.Reporter.Report(d)
	}
}

func report(r diag.Reporter, code diag.Code, module, msg string) {
	if r == nil {
		return
	}
	r.Report(diag.NewError(code, module, msg))
}
