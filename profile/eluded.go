package profile

import (
	"io"

	"github.com/Emyrk/profgraph/graph"
	"github.com/Emyrk/profgraph/profile/eluded"
)

// elusionConverter folds eluded call trees, one per tick, into a single call
// graph. Times are converted from milliseconds to seconds.
type elusionConverter struct {
	p         *graph.Profile
	functions map[string]*graph.Function
}

func parseEluded(r io.Reader, opts Options, p *graph.Profile) (graph.ReduceOptions, error) {
	method, err := callRatiosOnly(FormatEluded, opts)
	if err != nil {
		return graph.ReduceOptions{}, err
	}

	ticks, err := eluded.Decode(r)
	if err != nil {
		return graph.ReduceOptions{}, err
	}

	c := &elusionConverter{
		p:         p,
		functions: make(map[string]*graph.Function),
	}
	for _, tick := range ticks {
		if tick.Key == "" {
			tick.Key = "tick"
		}
		c.recurseFunctions(tick)
	}

	logger := p.Logger()
	logger.Debug().
		Int("ticks", len(ticks)).
		Int("functions", len(c.functions)).
		Msg("decoded eluded profile")

	return graph.ReduceOptions{
		SelfEvent: graph.Time,
		CallEvent: graph.Samples2,
		Method:    method,
	}, nil
}

func (c *elusionConverter) recurseFunctions(node eluded.Profile) *graph.Function {
	f := c.function(node.Key)
	f.Set(graph.Time, f.Get(graph.Time)+node.SelfCPU()/1e3)

	for _, child := range node.Children {
		callee := c.recurseFunctions(child)
		callee.AddCalled(1)

		call := f.CallTo(callee.ID)
		calls, _ := call.Lookup(graph.Calls)
		call.Set(graph.Calls, calls+1)
		cpu, _ := call.Lookup(graph.Samples2)
		call.Set(graph.Samples2, cpu+child.CPU/1e3)
	}
	return f
}

func (c *elusionConverter) function(name string) *graph.Function {
	if fn, found := c.functions[name]; found {
		return fn
	}
	fn := c.p.NewFunction(name)
	fn.Set(graph.Time, 0)
	c.functions[name] = fn
	return fn
}
