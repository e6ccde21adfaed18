package graph

import (
	"fmt"
	"regexp"
	"strings"
)

type PruneOptions struct {
	// NodeThreshold removes functions whose weight is below it.
	NodeThreshold float64
	// EdgeThreshold removes calls whose weight is below it.
	EdgeThreshold float64
	// Paths, when set, keeps only functions whose filename starts with one
	// of the prefixes. Functions without a filename are kept.
	Paths []string
	// ColorBySelfTime reweights the surviving functions by their self time
	// relative to the heaviest one.
	ColorBySelfTime bool
}

// Prune weighs every function and call by its total time ratio and removes
// what falls below the thresholds. Calls without their own total time ratio
// are weighed by the lighter of their two endpoints. It returns how many
// functions and calls were removed.
func (p *Profile) Prune(opts PruneOptions) (functions int, calls int) {
	for _, f := range p.Functions() {
		if w, ok := f.Lookup(TotalTimeRatio); ok {
			f.SetWeight(w)
		}
		for _, call := range f.Calls() {
			if w, ok := call.Lookup(TotalTimeRatio); ok {
				call.SetWeight(w)
				continue
			}
			callee, ok := p.functions[call.CalleeID]
			if !ok {
				continue
			}
			fw, fok := f.Lookup(TotalTimeRatio)
			cw, cok := callee.Lookup(TotalTimeRatio)
			if fok && cok {
				call.SetWeight(min(fw, cw))
			}
		}
	}

	for _, f := range p.Functions() {
		if w, ok := f.Weight(); ok && w < opts.NodeThreshold {
			delete(p.functions, f.ID)
			functions++
		}
	}

	if len(opts.Paths) > 0 {
		for _, f := range p.Functions() {
			if f.Filename == "" || hasAnyPrefix(f.Filename, opts.Paths) {
				continue
			}
			delete(p.functions, f.ID)
			functions++
		}
	}

	for _, f := range p.Functions() {
		for _, call := range f.Calls() {
			_, ok := p.functions[call.CalleeID]
			w, wok := call.Weight()
			if ok && !(wok && w < opts.EdgeThreshold) {
				continue
			}
			delete(f.calls, call.CalleeID)
			calls++
		}
	}

	if opts.ColorBySelfTime {
		p.weighBySelfTime()
	}

	p.logger.Debug().
		Int("removed_functions", functions).
		Int("removed_calls", calls).
		Int("functions", len(p.functions)).
		Msg("pruned graph")
	return functions, calls
}

func (p *Profile) weighBySelfTime() {
	maxRatio := 0.0
	for _, f := range p.functions {
		if v, ok := f.Lookup(TimeRatio); ok && v > maxRatio {
			maxRatio = v
		}
	}
	if maxRatio == 0 {
		maxRatio = 1
	}
	for _, f := range p.functions {
		if v, ok := f.Lookup(TimeRatio); ok {
			f.SetWeight(v / maxRatio)
		}
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// PruneRoot keeps only the given functions and what they reach through
// outgoing calls, up to depth calls away. A negative depth is unlimited.
func (p *Profile) PruneRoot(ids []FunctionID, depth int) error {
	return p.restrict(ids, depth, func(id FunctionID) []FunctionID {
		var out []FunctionID
		for _, call := range p.functions[id].Calls() {
			out = append(out, call.CalleeID)
		}
		return out
	})
}

// PruneLeaf keeps only the given functions and their callers, up to depth
// calls away. A negative depth is unlimited.
func (p *Profile) PruneLeaf(ids []FunctionID, depth int) error {
	callers := make(map[FunctionID][]FunctionID, len(p.functions))
	for _, f := range p.Functions() {
		for _, call := range f.Calls() {
			callers[call.CalleeID] = append(callers[call.CalleeID], f.ID)
		}
	}
	return p.restrict(ids, depth, func(id FunctionID) []FunctionID {
		return callers[id]
	})
}

func (p *Profile) restrict(ids []FunctionID, depth int, next func(FunctionID) []FunctionID) error {
	for _, id := range ids {
		if _, ok := p.functions[id]; !ok {
			return fmt.Errorf("function %d: %w", id, ErrFunctionNotFound)
		}
	}

	type item struct {
		id    FunctionID
		depth int
	}
	visited := make(map[FunctionID]bool, len(p.functions))
	queue := make([]item, 0, len(ids))
	for _, id := range ids {
		if !visited[id] {
			visited[id] = true
			queue = append(queue, item{id: id, depth: depth})
		}
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth == 0 {
			continue
		}
		for _, n := range next(it.id) {
			if _, ok := p.functions[n]; !ok || visited[n] {
				continue
			}
			visited[n] = true
			queue = append(queue, item{id: n, depth: it.depth - 1})
		}
	}

	for _, f := range p.Functions() {
		if !visited[f.ID] {
			delete(p.functions, f.ID)
			continue
		}
		for _, call := range f.Calls() {
			if !visited[call.CalleeID] {
				delete(f.calls, call.CalleeID)
			}
		}
	}
	return nil
}

// FunctionIDs returns the ids of functions whose whole name matches the
// regular expression pattern.
func (p *Profile) FunctionIDs(pattern string) ([]FunctionID, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	var ids []FunctionID
	for _, f := range p.Functions() {
		if re.MatchString(f.Name) {
			ids = append(ids, f.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%q: %w", pattern, ErrFunctionNotFound)
	}
	return ids, nil
}

// Focus resolves each root and leaf pattern with FunctionIDs and restricts
// the graph with PruneRoot and then PruneLeaf. Empty pattern lists are
// skipped.
func (p *Profile) Focus(roots, leaves []string, depth int) error {
	if len(roots) > 0 {
		ids, err := p.matchAll(roots)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
		err = p.PruneRoot(ids, depth)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
	}
	if len(leaves) > 0 {
		ids, err := p.matchAll(leaves)
		if err != nil {
			return fmt.Errorf("leaf: %w", err)
		}
		err = p.PruneLeaf(ids, depth)
		if err != nil {
			return fmt.Errorf("leaf: %w", err)
		}
	}
	return nil
}

func (p *Profile) matchAll(patterns []string) ([]FunctionID, error) {
	var ids []FunctionID
	for _, pattern := range patterns {
		matched, err := p.FunctionIDs(pattern)
		if err != nil {
			return nil, err
		}
		ids = append(ids, matched...)
	}
	return ids, nil
}
