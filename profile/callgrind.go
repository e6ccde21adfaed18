package profile

import (
	"fmt"
	"io"

	"github.com/Emyrk/profgraph/graph"
	"github.com/Emyrk/profgraph/profile/callgrind"
)

func parseCallgrind(r io.Reader, opts Options, p *graph.Profile) (graph.ReduceOptions, error) {
	method, err := callRatiosOnly(FormatCallgrind, opts)
	if err != nil {
		return graph.ReduceOptions{}, err
	}

	cg, err := callgrind.NewCallgrindParser(r).Parse()
	if err != nil {
		return graph.ReduceOptions{}, err
	}

	if len(cg.Events) == 0 {
		return graph.ReduceOptions{}, callgrind.ErrNoEvents
	}
	event := 0
	if opts.Event != "" {
		event = cg.EventIndex(opts.Event)
		if event < 0 {
			return graph.ReduceOptions{}, fmt.Errorf("event %q not in %v", opts.Event, cg.Events)
		}
	}

	ids := make(map[string]*graph.Function)
	for _, cf := range cg.Functions() {
		f := p.NewFunction(cf.Name)
		f.Module = cf.Module()
		f.Filename = cf.File
		f.Set(graph.Samples, float64(cost(cf.Self, event)))
		if cf.Called > 0 {
			f.AddCalled(float64(cf.Called))
		}
		ids[cf.ID] = f
	}

	for _, cf := range cg.Functions() {
		caller := ids[cf.ID]
		for _, cc := range cf.Calls() {
			call := &graph.Call{CalleeID: ids[cc.CalleeID].ID}
			call.Set(graph.Calls, float64(cc.Count))
			call.Set(graph.Samples2, float64(cost(cc.Inclusive, event)))
			p.AddCall(caller, call)
		}
	}

	logger := p.Logger()
	logger.Debug().
		Str("event", cg.Events[event]).
		Int("functions", len(ids)).
		Int("roots", len(cg.Roots())).
		Str("cmd", cg.Header["cmd"]).
		Msg("decoded callgrind profile")

	return graph.ReduceOptions{
		SelfEvent: graph.Samples,
		CallEvent: graph.Samples2,
		Method:    method,
	}, nil
}

func cost(costs []int64, event int) int64 {
	if event >= len(costs) {
		return 0
	}
	return costs[event]
}
