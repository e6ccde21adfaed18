package graph

import (
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// conservationTolerance bounds the relative error allowed between the time
// an entry pushes into a cycle and the time distributed among its members.
const conservationTolerance = 1e-6

// Integrate computes outevent, the inclusive value of inevent, for every
// function and call. A function's inclusive value is its own inevent plus the
// ratio-weighted inclusive value of every callee. Functions in a cycle share
// the cycle's total, split along the shortest paths from each entry point.
//
// inevent must be defined on every function, outevent on none, and CallRatios
// must have run. Components are integrated callees first, without recursion.
func (p *Profile) Integrate(outevent, inevent Event) error {
	err := p.checkIntegrate(outevent, inevent)
	if err != nil {
		return err
	}

	comps := p.components()
	for _, comp := range comps {
		err := p.checkComponent(comp)
		if err != nil {
			return err
		}
	}

	// Each cycle's own inevent is aggregated once, before anything below
	// writes outevent.
	for _, c := range p.cycles {
		total := inevent.Null()
		for _, id := range c.members {
			total += p.functions[id].Get(inevent)
		}
		c.Set(inevent, total)
	}

	entries := p.cycleEntries()
	for _, comp := range comps {
		f := p.functions[comp[0]]
		if f.cycle == nil {
			p.integrateFunction(f, outevent, inevent)
			continue
		}
		err := p.integrateCycle(f.cycle, entries[f.cycle], outevent, inevent)
		if err != nil {
			return err
		}
	}

	total := inevent.Null()
	for _, f := range p.Functions() {
		total += f.Get(inevent)
	}
	p.Set(inevent, total)
	p.Set(outevent, total)
	return nil
}

func (p *Profile) checkIntegrate(outevent, inevent Event) error {
	if p.Has(outevent) {
		return fmt.Errorf("profile %q: %w", outevent, ErrEventDefined)
	}
	for _, c := range p.cycles {
		if c.Has(outevent) {
			return fmt.Errorf("cycle %d %q: %w", c.ID, outevent, ErrEventDefined)
		}
	}
	for _, f := range p.Functions() {
		if f.Has(outevent) {
			return fmt.Errorf("function %q %q: %w", f.Name, outevent, ErrEventDefined)
		}
		if !f.Has(inevent) {
			return fmt.Errorf("function %q %q: %w", f.Name, inevent, ErrEventUndefined)
		}
		for _, call := range f.Calls() {
			if call.Has(outevent) {
				return fmt.Errorf("call %q -> %d %q: %w", f.Name, call.CalleeID, outevent, ErrEventDefined)
			}
			if _, ok := p.functions[call.CalleeID]; !ok {
				return fmt.Errorf("call %q -> %d: %w", f.Name, call.CalleeID, ErrDanglingCall)
			}
			if call.CalleeID != f.ID && !call.ratio.set {
				return fmt.Errorf("call %q -> %d: %w", f.Name, call.CalleeID, ErrRatioUnset)
			}
		}
	}
	return nil
}

func (p *Profile) checkComponent(comp []FunctionID) error {
	first := p.functions[comp[0]]
	if len(comp) == 1 {
		if first.cycle != nil {
			return fmt.Errorf("function %q: %w", first.Name, ErrUnresolvedCycle)
		}
		return nil
	}
	c := first.cycle
	if c == nil || len(c.members) != len(comp) {
		return fmt.Errorf("function %q: %w", first.Name, ErrUnresolvedCycle)
	}
	for _, id := range comp {
		if p.functions[id].cycle != c {
			return fmt.Errorf("function %q: %w", p.functions[id].Name, ErrUnresolvedCycle)
		}
	}
	return nil
}

// inclusive is what a call from caller receives from callee: the callee's own
// inclusive value, or its cycle's total when the call enters a cycle.
func (p *Profile) inclusive(caller, callee *Function, outevent Event) float64 {
	if crossesInto(caller, callee) {
		return callee.cycle.Get(outevent)
	}
	return callee.Get(outevent)
}

func (p *Profile) integrateFunction(f *Function, outevent, inevent Event) {
	total := f.Get(inevent)
	for _, call := range f.Calls() {
		if call.CalleeID == f.ID {
			continue
		}
		callee := p.functions[call.CalleeID]
		sub := call.ratio.value * p.inclusive(f, callee, outevent)
		call.Set(outevent, sub)
		total += sub
	}
	f.Set(outevent, total)
}

// cycleEntries sums, per cycle, the ratios of calls entering the cycle from
// outside, grouped by the member they land on.
func (p *Profile) cycleEntries() map[*Cycle]map[FunctionID]float64 {
	entries := make(map[*Cycle]map[FunctionID]float64, len(p.cycles))
	for _, f := range p.Functions() {
		for _, call := range f.Calls() {
			callee := p.functions[call.CalleeID]
			if !crossesInto(f, callee) {
				continue
			}
			if entries[callee.cycle] == nil {
				entries[callee.cycle] = make(map[FunctionID]float64)
			}
			entries[callee.cycle][callee.ID] += call.ratio.value
		}
	}
	return entries
}

func (p *Profile) integrateCycle(c *Cycle, entries map[FunctionID]float64, outevent, inevent Event) error {
	total := outevent.Null()
	for _, id := range c.members {
		m := p.functions[id]
		sub := m.Get(inevent)
		for _, call := range m.Calls() {
			callee := p.functions[call.CalleeID]
			if callee == m || callee.cycle == c {
				continue
			}
			v := call.ratio.value * p.inclusive(m, callee, outevent)
			call.Set(outevent, v)
			sub += v
		}
		total += sub
	}
	c.Set(outevent, total)

	for _, id := range c.members {
		p.functions[id].Set(outevent, outevent.Null())
	}

	if len(entries) == 0 {
		// Nothing outside calls into this cycle. Every member is treated as
		// an equal entry point so the cycle total is still distributed.
		p.logger.Debug().
			Int("cycle", c.ID).
			Int("members", len(c.members)).
			Msg("cycle has no callers, distributing evenly")
		entries = make(map[FunctionID]float64, len(c.members))
		for _, id := range c.members {
			entries[id] = 1.0 / float64(len(c.members))
		}
	}

	ids := maps.Keys(entries)
	slices.Sort(ids)
	for _, entry := range ids {
		ratio := entries[entry]
		ranks := p.rankCycle(c, entry)
		partial := p.distributeCycle(c, entry, ratio, ranks, outevent, inevent)

		expected := ratio * total
		if math.Abs(expected-partial) > conservationTolerance*math.Abs(expected)+1e-12 {
			return fmt.Errorf("cycle %d entry %q: distributed %g, expected %g: %w",
				c.ID, p.functions[entry].Name, partial, expected, ErrConservation)
		}
	}
	return nil
}

// rankCycle assigns every member of c its minimum hop count from entry along
// calls inside the cycle.
func (p *Profile) rankCycle(c *Cycle, entry FunctionID) map[FunctionID]int {
	ranks := map[FunctionID]int{entry: 0}
	queue := []FunctionID{entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, call := range p.functions[id].Calls() {
			callee := p.functions[call.CalleeID]
			if callee.ID == id || callee.cycle != c {
				continue
			}
			if _, ok := ranks[callee.ID]; ok {
				continue
			}
			ranks[callee.ID] = ranks[id] + 1
			queue = append(queue, callee.ID)
		}
	}
	return ranks
}

// forwardCall reports whether call goes from a lower to a higher rank inside
// c. Only forward calls carry time inside a cycle, which keeps the
// distribution acyclic.
func (p *Profile) forwardCall(c *Cycle, caller *Function, call *Call, ranks map[FunctionID]int) bool {
	callee := p.functions[call.CalleeID]
	if callee == caller || callee.cycle != c {
		return false
	}
	return ranks[callee.ID] > ranks[caller.ID]
}

// distributeCycle pushes ratio of the cycle total in through entry. Each
// member's partial is its own inevent plus what it passes on, and callees
// split their partial among forward callers in proportion to call ratios.
// Members are processed from the highest rank down, so every callee partial
// is final before a caller reads it.
func (p *Profile) distributeCycle(c *Cycle, entry FunctionID, ratio float64, ranks map[FunctionID]int, outevent, inevent Event) float64 {
	inRatio := make(map[FunctionID]float64, len(c.members))
	inCount := make(map[FunctionID]int, len(c.members))
	for _, id := range c.members {
		m := p.functions[id]
		for _, call := range m.Calls() {
			if p.forwardCall(c, m, call, ranks) {
				inRatio[call.CalleeID] += call.ratio.value
				inCount[call.CalleeID]++
			}
		}
	}

	order := make([]FunctionID, 0, len(ranks))
	for id := range ranks {
		order = append(order, id)
	}
	slices.SortFunc(order, func(a, b FunctionID) int {
		if ranks[a] != ranks[b] {
			return ranks[b] - ranks[a]
		}
		return int(a - b)
	})

	partials := make(map[FunctionID]float64, len(order))
	for _, id := range order {
		m := p.functions[id]
		partial := ratio * m.Get(inevent)
		for _, call := range m.Calls() {
			callee := p.functions[call.CalleeID]
			if callee == m {
				continue
			}
			if callee.cycle != c {
				partial += ratio * call.Get(outevent)
				continue
			}
			if !p.forwardCall(c, m, call, ranks) {
				continue
			}

			share := 1.0 / float64(inCount[callee.ID])
			if inRatio[callee.ID] != 0 {
				share = call.ratio.value / inRatio[callee.ID]
			}
			v := share * partials[callee.ID]
			prev, _ := call.Lookup(outevent)
			call.Set(outevent, prev+v)
			partial += v
		}
		partials[id] = partial
		m.Set(outevent, m.Get(outevent)+partial)
	}
	return partials[entry]
}
