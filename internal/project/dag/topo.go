package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Topo is the result of sorting a Graph.
type Topo struct {
	Order   []ModuleID   // зависимости раньше пользователей, только присутствующие модули
	Batches [][]ModuleID // волны: модули одной волны друг от друга не зависят
	Cyclic  bool
	Cycles  []ModuleID // модули, которые не удалось упорядочить
	Path    []ModuleID // один конкретный цикл, первый модуль повторён в конце
}

// ToposortKahn orders the present modules of g in waves. Modules left with
// unresolved dependencies after the last wave are reported in Cycles.
func ToposortKahn(g Graph) *Topo {
	indeg := slices.Clone(g.Indeg)
	topo := &Topo{Order: make([]ModuleID, 0, len(g.Deps))}

	wave := g.collect(func(i int) bool { return indeg[i] == 0 })
	for len(wave) > 0 {
		topo.Batches = append(topo.Batches, wave)
		topo.Order = append(topo.Order, wave...)

		var next []ModuleID
		for _, id := range wave {
			for _, user := range g.Users[int(id)] {
				if indeg[int(user)]--; indeg[int(user)] == 0 {
					next = append(next, user)
				}
			}
		}
		slices.Sort(next)
		wave = next
	}

	topo.Cycles = g.collect(func(i int) bool { return indeg[i] > 0 })
	if len(topo.Cycles) > 0 {
		topo.Cyclic = true
		topo.Path = g.cyclePath(topo.Cycles, indeg)
	}
	return topo
}

// collect returns the present modules matching keep, in id order.
func (g Graph) collect(keep func(int) bool) []ModuleID {
	var out []ModuleID
	for i := range g.Deps {
		if g.Present[i] && keep(i) {
			out = append(out, toID(i))
		}
	}
	return out
}

// cyclePath walks unsorted dependencies from the first stuck module until a
// module repeats. Every stuck module has at least one stuck dependency, so
// the walk always closes a loop.
func (g Graph) cyclePath(stuck []ModuleID, indeg []int) []ModuleID {
	pos := make(map[ModuleID]int)
	var path []ModuleID
	for cur := stuck[0]; ; {
		if at, seen := pos[cur]; seen {
			return append(path[at:], cur)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next, ok := ModuleID(0), false
		for _, dep := range g.Deps[int(cur)] {
			if g.Present[int(dep)] && indeg[int(dep)] > 0 {
				next, ok = dep, true
				break
			}
		}
		if !ok {
			return path
		}
		cur = next
	}
}

func toID(i int) ModuleID {
	id, err := safecast.Conv[ModuleID](i)
	if err != nil {
		panic(fmt.Errorf("module id overflow: %w", err))
	}
	return id
}
