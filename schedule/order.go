package schedule

import "sort"

// Order computes the two-phase evaluation order.
//
// Phase A grows the acyclic prefix: starting from the inputless
// tasks, the frontier is scanned repeatedly and a task leaves the
// cycle set as soon as none of its inputs is still marked in-cycle;
// newly freed tasks are appended to AcyclicOrder in discovery order
// and their successors join the next frontier. The result is a
// topological order over the acyclic subgraph.
//
// Phase B layers whatever remains: CyclicLayer is the hop distance
// from the acyclic subgraph (BFS from the successors of acyclic
// tasks), MaxInputLayer the maximum layer among a task's inputs, and
// CyclicOrder sorts by MaxInputLayer with stable insertion order.
func (g *Graph) Order() {
	for _, t := range g.Tasks() {
		t.InCycle = true
		t.CyclicLayer = 0
		t.MaxInputLayer = 0
	}
	g.AcyclicOrder = nil
	g.CyclicOrder = nil

	// Phase A: acyclic prefix.
	var frontier []*DelayTask
	for _, vl := range g.cfg.Vlinks() {
		for _, vnodeNext := range vl.Src.Next {
			frontier = append(frontier, g.tasks[TaskID{vl.ID, vnodeNext.In.ID, ElemP}])
		}
	}
	for len(frontier) > 0 {
		grown := false
		for _, t := range frontier {
			if !t.InCycle {
				continue
			}
			free := true
			for _, dep := range t.Inputs {
				if dep.InCycle {
					free = false
					break
				}
			}
			if free {
				t.InCycle = false
				g.AcyclicOrder = append(g.AcyclicOrder, t)
				grown = true
			}
		}
		if !grown {
			break
		}
		frontier = frontier[:0]
		for _, t := range g.AcyclicOrder {
			for _, succ := range t.successors() {
				if succ.InCycle {
					frontier = append(frontier, succ)
				}
			}
		}
	}

	// Phase B: cyclic layering. Every task lies downstream of some
	// source, so BFS from the acyclic fringe reaches the whole
	// remainder.
	var cyclic []*DelayTask
	seen := make(map[TaskID]bool)
	for _, t := range g.AcyclicOrder {
		for _, succ := range t.successors() {
			if succ.InCycle && !seen[succ.ID()] {
				seen[succ.ID()] = true
				cyclic = append(cyclic, succ)
			}
		}
	}
	layer := 1
	for visited := 0; visited < len(cyclic); layer++ {
		frozen := len(cyclic)
		for i := visited; i < frozen; i++ {
			t := cyclic[i]
			t.CyclicLayer = layer
			for _, succ := range t.successors() {
				if succ.InCycle && !seen[succ.ID()] {
					seen[succ.ID()] = true
					cyclic = append(cyclic, succ)
				}
			}
			visited++
		}
	}
	if len(cyclic) == 0 {
		return
	}

	for _, t := range cyclic {
		maxLayer := -1
		for _, dep := range t.Inputs {
			if dep.CyclicLayer > maxLayer {
				maxLayer = dep.CyclicLayer
			}
		}
		t.MaxInputLayer = maxLayer
	}
	sort.SliceStable(cyclic, func(i, j int) bool {
		return cyclic[i].MaxInputLayer < cyclic[j].MaxInputLayer
	})
	g.CyclicOrder = cyclic
}

// Acyclic reports whether the whole graph was ordered without a
// cyclic remainder. Valid after Order.
func (g *Graph) Acyclic() bool { return len(g.CyclicOrder) == 0 }
