package graph

// Validate removes calls to functions that are not part of the profile and
// returns how many were removed. It never fails; every dropped edge is logged.
func (p *Profile) Validate() int {
	removed := 0
	for _, f := range p.Functions() {
		for _, call := range f.Calls() {
			if _, ok := p.functions[call.CalleeID]; ok {
				continue
			}
			p.logger.Warn().
				Int("caller", int(f.ID)).
				Str("caller_name", f.Name).
				Int("callee", int(call.CalleeID)).
				Msg("dropping call to unknown function")
			delete(f.calls, call.CalleeID)
			removed++
		}
	}
	return removed
}
