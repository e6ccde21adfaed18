package graph

import (
	"golang.org/x/exp/slices"
)

// FindCycles detects recursion with Tarjan's strongly connected components
// algorithm. Every component of two or more functions becomes a Cycle and its
// members point back at it. A function that only calls itself is not a cycle.
// Previously found cycles are discarded.
func (p *Profile) FindCycles() []*Cycle {
	for _, f := range p.functions {
		f.cycle = nil
	}
	p.cycles = nil

	for _, comp := range p.components() {
		if len(comp) < 2 {
			continue
		}
		slices.Sort(comp)
		p.cycles = append(p.cycles, &Cycle{members: comp})
	}

	slices.SortFunc(p.cycles, func(a, b *Cycle) int {
		return int(a.members[0] - b.members[0])
	})
	for i, c := range p.cycles {
		c.ID = i
		for _, id := range c.members {
			p.functions[id].cycle = c
		}
	}

	p.logger.Debug().
		Int("functions", len(p.functions)).
		Int("cycles", len(p.cycles)).
		Msg("found cycles")
	return p.Cycles()
}

type tarjanFrame struct {
	id      FunctionID
	callees []FunctionID
	next    int
}

// components returns the strongly connected components in the order Tarjan's
// algorithm completes them, so every component comes after the components it
// calls into. The traversal keeps its own stack instead of recursing.
func (p *Profile) components() [][]FunctionID {
	var (
		counter int
		index   = make(map[FunctionID]int, len(p.functions))
		lowlink = make(map[FunctionID]int, len(p.functions))
		onStack = make(map[FunctionID]bool, len(p.functions))
		stack   []FunctionID
		out     [][]FunctionID
	)

	visit := func(id FunctionID) *tarjanFrame {
		index[id] = counter
		lowlink[id] = counter
		counter++
		stack = append(stack, id)
		onStack[id] = true

		fr := &tarjanFrame{id: id}
		for _, call := range p.functions[id].Calls() {
			if _, ok := p.functions[call.CalleeID]; ok {
				fr.callees = append(fr.callees, call.CalleeID)
			}
		}
		return fr
	}

	for _, root := range p.functionIDs() {
		if _, seen := index[root]; seen {
			continue
		}

		work := []*tarjanFrame{visit(root)}
		for len(work) > 0 {
			top := work[len(work)-1]
			if top.next < len(top.callees) {
				w := top.callees[top.next]
				top.next++
				if _, seen := index[w]; !seen {
					work = append(work, visit(w))
				} else if onStack[w] {
					lowlink[top.id] = min(lowlink[top.id], index[w])
				}
				continue
			}

			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].id
				lowlink[parent] = min(lowlink[parent], lowlink[top.id])
			}

			if lowlink[top.id] != index[top.id] {
				continue
			}
			var comp []FunctionID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == top.id {
					break
				}
			}
			out = append(out, comp)
		}
	}
	return out
}
