package graph

import (
	"errors"
)

var (
	// ErrEventDefined means an output event is already present where an
	// operation is about to compute it.
	ErrEventDefined = errors.New("event already defined")
	// ErrEventUndefined means an input event is missing.
	ErrEventUndefined = errors.New("event undefined")
	// ErrRatioUnset means Integrate ran before CallRatios.
	ErrRatioUnset = errors.New("call ratio not computed")
	// ErrUnresolvedCycle means Integrate found recursion that FindCycles has
	// not turned into a Cycle.
	ErrUnresolvedCycle = errors.New("recursion not resolved into a cycle")
	// ErrDanglingCall means a call targets a function that is not in the
	// profile. Validate removes these.
	ErrDanglingCall = errors.New("call to unknown function")
	// ErrConservation means the time distributed through a cycle does not
	// add up to the cycle total.
	ErrConservation = errors.New("cycle integration does not conserve time")
	// ErrFunctionNotFound means a focus target does not exist.
	ErrFunctionNotFound = errors.New("function not found")
)
