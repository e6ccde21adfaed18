package graph

import (
	"fmt"
)

// UndefinedEventError is the panic value when an undefined event is read with
// Get. Absence means "undefined", never zero.
type UndefinedEventError struct {
	Event Event
}

func (e *UndefinedEventError) Error() string {
	return fmt.Sprintf("undefined event %q", e.Event)
}

// Object is a sparse store of event values.
type Object struct {
	values  [numEvents]float64
	defined uint32
}

func (o *Object) Has(e Event) bool {
	return o.defined&(1<<e) != 0
}

// Lookup returns the value of e and whether it is defined.
func (o *Object) Lookup(e Event) (float64, bool) {
	if !o.Has(e) {
		return 0, false
	}
	return o.values[e], true
}

// Get returns the value of e. Reading an undefined event is a contract
// violation and panics with *UndefinedEventError.
func (o *Object) Get(e Event) float64 {
	if !o.Has(e) {
		panic(&UndefinedEventError{Event: e})
	}
	return o.values[e]
}

func (o *Object) Set(e Event, v float64) {
	o.values[e] = v
	o.defined |= 1 << e
}

// Add aggregates v into e, defining e if it was not.
func (o *Object) Add(e Event, v float64) error {
	if !o.Has(e) {
		o.Set(e, v)
		return nil
	}
	sum, err := e.Aggregate(o.values[e], v)
	if err != nil {
		return err
	}
	o.values[e] = sum
	return nil
}

func (o *Object) Delete(e Event) {
	o.values[e] = 0
	o.defined &^= 1 << e
}

// Events lists the defined events in registry order.
func (o *Object) Events() []Event {
	var out []Event
	for e := Event(0); e < numEvents; e++ {
		if o.Has(e) {
			out = append(out, e)
		}
	}
	return out
}
