package graph

import (
	"fmt"
)

// TotalMethod selects how total time is derived.
type TotalMethod string

const (
	// TotalCallRatios integrates self time up the graph along call ratios.
	TotalCallRatios TotalMethod = "callratios"
	// TotalCallStacks uses TotalSamples counted by adapters that saw whole
	// stacks, which is exact for every function but approximate for calls.
	TotalCallStacks TotalMethod = "callstacks"
)

type ReduceOptions struct {
	// SelfEvent is the exclusive measurement of each function.
	SelfEvent Event
	// CallEvent is the per-call measurement used to apportion callees.
	CallEvent Event
	Method    TotalMethod
}

// Reduce runs the reduction steps in their required order. After it returns,
// every function carries TimeRatio and TotalTimeRatio.
func Reduce(p *Profile, opts ReduceOptions) error {
	if opts.Method == "" {
		opts.Method = TotalCallRatios
	}

	p.Validate()
	p.FindCycles()
	p.CallRatios(opts.CallEvent)

	switch opts.Method {
	case TotalCallRatios:
		err := p.Integrate(TotalTime, opts.SelfEvent)
		if err != nil {
			return fmt.Errorf("integrate: %w", err)
		}
		err = p.Ratio(TimeRatio, opts.SelfEvent)
		if err != nil {
			return fmt.Errorf("self ratio: %w", err)
		}
		err = p.Ratio(TotalTimeRatio, TotalTime)
		if err != nil {
			return fmt.Errorf("total ratio: %w", err)
		}
	case TotalCallStacks:
		if !p.Aggregate(opts.SelfEvent) {
			return fmt.Errorf("aggregate %q: %w", opts.SelfEvent, ErrEventUndefined)
		}
		err := p.Ratio(TimeRatio, opts.SelfEvent)
		if err != nil {
			return fmt.Errorf("self ratio: %w", err)
		}
		p.Set(TotalSamples, p.Get(opts.SelfEvent))
		err = p.Ratio(TotalTimeRatio, TotalSamples)
		if err != nil {
			return fmt.Errorf("total ratio: %w", err)
		}
		for _, f := range p.Functions() {
			for _, call := range f.Calls() {
				ratio, ok := call.Ratio()
				if !ok || call.CalleeID == f.ID {
					continue
				}
				call.Set(TotalTimeRatio, ratio*p.functions[call.CalleeID].Get(TotalTimeRatio))
			}
		}
	default:
		return fmt.Errorf("unknown total method %q", opts.Method)
	}

	p.logger.Debug().
		Int("functions", len(p.functions)).
		Int("cycles", len(p.cycles)).
		Str("method", string(opts.Method)).
		Msg("reduced profile")
	return nil
}
