package profile

import (
	"github.com/Emyrk/profgraph/graph"
)

type frame struct {
	name   string
	module string
	file   string
}

// stacks accumulates sampled call stacks into a profile. The leaf of every
// sample gets its value as self samples, every distinct caller->callee pair
// in the sample gets it once as call samples, and every distinct function
// in the sample gets it once as total samples.
type stacks struct {
	p      *graph.Profile
	byName map[string]*graph.Function
}

func newStacks(p *graph.Profile) *stacks {
	return &stacks{
		p:      p,
		byName: make(map[string]*graph.Function),
	}
}

func (s *stacks) function(fr frame) *graph.Function {
	if f, ok := s.byName[fr.name]; ok {
		return f
	}
	f := s.p.NewFunction(fr.name)
	f.Module = fr.module
	f.Filename = fr.file
	f.Set(graph.Samples, 0)
	f.Set(graph.TotalSamples, 0)
	s.byName[fr.name] = f
	return f
}

// add records one sample. frames are ordered leaf first.
func (s *stacks) add(frames []frame, value float64) {
	if len(frames) == 0 {
		return
	}

	fns := make([]*graph.Function, len(frames))
	for i, fr := range frames {
		fns[i] = s.function(fr)
	}

	leaf := fns[0]
	leaf.Set(graph.Samples, leaf.Get(graph.Samples)+value)

	seen := make(map[graph.FunctionID]bool, len(fns))
	for _, f := range fns {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		f.Set(graph.TotalSamples, f.Get(graph.TotalSamples)+value)
	}

	type pair struct{ caller, callee graph.FunctionID }
	seenEdge := make(map[pair]bool, len(fns))
	for i := 1; i < len(fns); i++ {
		caller, callee := fns[i], fns[i-1]
		key := pair{caller: caller.ID, callee: callee.ID}
		if seenEdge[key] {
			continue
		}
		seenEdge[key] = true
		call := caller.CallTo(callee.ID)
		prev, _ := call.Lookup(graph.Samples2)
		call.Set(graph.Samples2, prev+value)
	}
}

func stackReduceOptions(opts Options) graph.ReduceOptions {
	method := opts.Method
	if method == "" {
		method = graph.TotalCallRatios
	}
	return graph.ReduceOptions{
		SelfEvent: graph.Samples,
		CallEvent: graph.Samples2,
		Method:    method,
	}
}
