package graph

import (
	"fmt"
)

// RatioTolerance is how far outside [0, 1] a ratio may fall to rounding
// before it is reported.
const RatioTolerance = 1.0 / (1 << 23)

// SafeRatio divides numerator by denominator for attribution purposes. A zero
// denominator yields 1.0. Results outside [0, 1] are clamped; ok is false when
// the clamped amount exceeds RatioTolerance.
func SafeRatio(numerator, denominator float64) (ratio float64, ok bool) {
	if denominator == 0 {
		return 1.0, true
	}
	ratio = numerator / denominator
	switch {
	case ratio < 0:
		return 0, ratio >= -RatioTolerance
	case ratio > 1:
		return 1, ratio <= 1+RatioTolerance
	default:
		return ratio, true
	}
}

func (p *Profile) safeRatio(numerator, denominator float64) float64 {
	ratio, ok := SafeRatio(numerator, denominator)
	if !ok {
		p.logger.Warn().
			Float64("numerator", numerator).
			Float64("denominator", denominator).
			Msg("ratio out of range, clamping")
	}
	return ratio
}

func crossesInto(caller, callee *Function) bool {
	return callee.cycle != nil && callee.cycle != caller.cycle
}

// CallRatios sets the ratio of every call: the call's share of event among all
// calls into the callee, or into the callee's cycle when the call enters the
// cycle from outside. Self calls get ratio 0.
func (p *Profile) CallRatios(event Event) {
	functionTotals := make(map[FunctionID]float64, len(p.functions))
	cycleTotals := make(map[*Cycle]float64, len(p.cycles))

	functions := p.Functions()
	for _, f := range functions {
		for _, call := range f.Calls() {
			callee, ok := p.functions[call.CalleeID]
			if !ok || callee == f {
				continue
			}
			v, ok := call.Lookup(event)
			if !ok {
				p.logger.Warn().
					Str("caller", f.Name).
					Str("callee", callee.Name).
					Stringer("event", event).
					Msg("call has no data")
				continue
			}
			functionTotals[callee.ID] += v
			if crossesInto(f, callee) {
				cycleTotals[callee.cycle] += v
			}
		}
	}

	for _, f := range functions {
		for _, call := range f.Calls() {
			callee, ok := p.functions[call.CalleeID]
			if !ok || callee == f {
				call.ratio = optional{set: true}
				continue
			}
			v, ok := call.Lookup(event)
			if !ok {
				call.ratio = optional{set: true}
				continue
			}
			total := functionTotals[callee.ID]
			if crossesInto(f, callee) {
				total = cycleTotals[callee.cycle]
			}
			call.ratio = optional{value: p.safeRatio(v, total), set: true}
		}
	}
}

// Ratio expresses inevent as a fraction of the profile-wide inevent total and
// stores it as outevent on every function and on every call carrying inevent.
func (p *Profile) Ratio(outevent, inevent Event) error {
	if p.Has(outevent) {
		return fmt.Errorf("profile %q: %w", outevent, ErrEventDefined)
	}
	total, ok := p.Lookup(inevent)
	if !ok {
		return fmt.Errorf("profile %q: %w", inevent, ErrEventUndefined)
	}

	functions := p.Functions()
	for _, f := range functions {
		if f.Has(outevent) {
			return fmt.Errorf("function %q %q: %w", f.Name, outevent, ErrEventDefined)
		}
		if !f.Has(inevent) {
			return fmt.Errorf("function %q %q: %w", f.Name, inevent, ErrEventUndefined)
		}
	}

	for _, f := range functions {
		f.Set(outevent, p.safeRatio(f.Get(inevent), total))
		for _, call := range f.Calls() {
			if v, ok := call.Lookup(inevent); ok {
				call.Set(outevent, p.safeRatio(v, total))
			}
		}
	}
	p.Set(outevent, 1.0)
	return nil
}

// Aggregate sets the profile-wide value of event when every function defines
// it, and reports whether it did.
func (p *Profile) Aggregate(event Event) bool {
	total := event.Null()
	for _, f := range p.Functions() {
		v, ok := f.Lookup(event)
		if !ok {
			return false
		}
		sum, err := event.Aggregate(total, v)
		if err != nil {
			return false
		}
		total = sum
	}
	p.Set(event, total)
	return true
}
