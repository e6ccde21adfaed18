package callgrind

import (
	"path/filepath"
)

// Profile is the decoded content of one callgrind file. Functions are keyed
// by name, the way callgrind tools merge them.
type Profile struct {
	Header    map[string]string
	Events    []string
	Positions []string

	functions map[string]*Function
	order     []string
}

type Function struct {
	ID     string
	Name   string
	Object string
	File   string

	// Self holds the exclusive cost per event.
	Self   []int64
	Called int64

	calls map[string]*Call
	order []string
}

type Call struct {
	CalleeID string
	Count    int64
	// Inclusive holds the inclusive cost of the call per event.
	Inclusive []int64
}

// Module is the base name of the object file the function lives in.
func (f *Function) Module() string {
	if f.Object == "" {
		return ""
	}
	return filepath.Base(f.Object)
}

// Calls returns the outgoing calls in the order they first appeared.
func (f *Function) Calls() []*Call {
	out := make([]*Call, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.calls[id])
	}
	return out
}

// Functions returns every function in the order it first appeared.
func (p *Profile) Functions() []*Function {
	out := make([]*Function, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.functions[id])
	}
	return out
}

func (p *Profile) GetFunction(id string) (*Function, bool) {
	f, ok := p.functions[id]
	return f, ok
}

// Roots returns the functions nothing else calls.
func (p *Profile) Roots() []*Function {
	called := make(map[string]bool, len(p.functions))
	for _, f := range p.functions {
		for _, call := range f.calls {
			if call.CalleeID != f.ID {
				called[call.CalleeID] = true
			}
		}
	}

	var roots []*Function
	for _, f := range p.Functions() {
		if !called[f.ID] {
			roots = append(roots, f)
		}
	}
	return roots
}

// EventIndex returns the column of the named event, or -1.
func (p *Profile) EventIndex(name string) int {
	for i, e := range p.Events {
		if e == name {
			return i
		}
	}
	return -1
}

func (p *Profile) function(name string) *Function {
	if f, ok := p.functions[name]; ok {
		return f
	}
	f := &Function{
		ID:    name,
		Name:  name,
		Self:  make([]int64, len(p.Events)),
		calls: make(map[string]*Call),
	}
	p.functions[name] = f
	p.order = append(p.order, name)
	return f
}

func (f *Function) call(callee string, events int) *Call {
	if c, ok := f.calls[callee]; ok {
		return c
	}
	c := &Call{
		CalleeID:  callee,
		Inclusive: make([]int64, events),
	}
	f.calls[callee] = c
	f.order = append(f.order, callee)
	return c
}
