// Package graph reduces profiler output into a normalized call graph and
// attributes inclusive time across it, including through recursive cycles.
//
// A Profile is built once by an adapter, then reduced in strict order:
// Validate, FindCycles, CallRatios, Integrate, Ratio, and optionally Prune.
// See Reduce.
package graph

import (
	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// FunctionID indexes a Function inside the Profile that owns it.
type FunctionID int

type optional struct {
	value float64
	set   bool
}

func (o optional) get() (float64, bool) { return o.value, o.set }

// Function is a node of the call graph.
type Function struct {
	Object

	ID       FunctionID
	Name     string
	Module   string
	Process  string
	Filename string

	calls  map[FunctionID]*Call
	called optional
	weight optional
	cycle  *Cycle
}

// Calls returns the outgoing calls ordered by callee id.
func (f *Function) Calls() []*Call {
	ids := maps.Keys(f.calls)
	slices.Sort(ids)
	out := make([]*Call, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.calls[id])
	}
	return out
}

// Call returns the call from f to callee, if any.
func (f *Function) Call(callee FunctionID) (*Call, bool) {
	c, ok := f.calls[callee]
	return c, ok
}

// CallTo returns the call from f to callee, creating it if needed.
func (f *Function) CallTo(callee FunctionID) *Call {
	if c, ok := f.calls[callee]; ok {
		return c
	}
	c := &Call{CalleeID: callee}
	f.calls[callee] = c
	return c
}

// Called is the number of times the function was called, when the profiler
// reports it.
func (f *Function) Called() (float64, bool) { return f.called.get() }

func (f *Function) AddCalled(n float64) {
	f.called = optional{value: f.called.value + n, set: true}
}

// Weight is the pruning and coloring weight, set by Prune.
func (f *Function) Weight() (float64, bool) { return f.weight.get() }

func (f *Function) SetWeight(w float64) { f.weight = optional{value: w, set: true} }

// Cycle returns the cycle f belongs to, or nil.
func (f *Function) Cycle() *Cycle { return f.cycle }

// Call is an edge from its owning Function to CalleeID.
type Call struct {
	Object

	CalleeID FunctionID

	ratio  optional
	weight optional
}

// Ratio is the share of the callee's (or the callee's cycle's) incoming
// attribution carried by this call. It is unset until CallRatios runs.
func (c *Call) Ratio() (float64, bool) { return c.ratio.get() }

func (c *Call) Weight() (float64, bool) { return c.weight.get() }

func (c *Call) SetWeight(w float64) { c.weight = optional{value: w, set: true} }

// Cycle is a strongly connected set of two or more functions.
type Cycle struct {
	Object

	ID      int
	members []FunctionID
}

// Members returns the ids of the member functions in ascending order.
func (c *Cycle) Members() []FunctionID {
	return slices.Clone(c.members)
}

// Profile owns every Function and Cycle of one adapter run.
type Profile struct {
	Object

	functions map[FunctionID]*Function
	cycles    []*Cycle
	nextID    FunctionID

	logger zerolog.Logger
}

// New creates an empty profile. Non-fatal diagnostics are written to logger.
func New(logger zerolog.Logger) *Profile {
	return &Profile{
		functions: make(map[FunctionID]*Function),
		logger:    logger,
	}
}

func (p *Profile) Logger() zerolog.Logger {
	return p.logger
}

// NewFunction registers a new function and returns it.
func (p *Profile) NewFunction(name string) *Function {
	f := &Function{
		ID:    p.nextID,
		Name:  name,
		calls: make(map[FunctionID]*Call),
	}
	p.nextID++
	p.functions[f.ID] = f
	return f
}

// AddCall attaches call to caller. When caller already calls the same callee,
// the events of call are merged into the existing call and that call is
// returned.
func (p *Profile) AddCall(caller *Function, call *Call) *Call {
	existing, ok := caller.calls[call.CalleeID]
	if !ok {
		caller.calls[call.CalleeID] = call
		return call
	}
	for _, e := range call.Events() {
		err := existing.Add(e, call.Get(e))
		if err != nil {
			p.logger.Warn().
				Err(err).
				Int("caller", int(caller.ID)).
				Int("callee", int(call.CalleeID)).
				Msg("conflicting values merging duplicate call, keeping the first")
		}
	}
	return existing
}

// Function returns the function with the given id.
func (p *Profile) Function(id FunctionID) (*Function, bool) {
	f, ok := p.functions[id]
	return f, ok
}

// Functions returns every function ordered by id.
func (p *Profile) Functions() []*Function {
	ids := p.functionIDs()
	out := make([]*Function, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.functions[id])
	}
	return out
}

func (p *Profile) functionIDs() []FunctionID {
	ids := maps.Keys(p.functions)
	slices.Sort(ids)
	return ids
}

func (p *Profile) Len() int {
	return len(p.functions)
}

// Cycles returns the cycles found by the last FindCycles.
func (p *Profile) Cycles() []*Cycle {
	return slices.Clone(p.cycles)
}
