package filter

// SuggestNarrowing returns up to max whitelisted dimensions the filter
// leaves unconstrained, as machine-readable refinement axes for a capped
// result. Numeric dimensions come first; categorical and text dimensions
// fill in when every numeric one is already constrained, and a fully
// constrained filter still yields one axis, so a capped result never ships
// without a suggestion. Policy predicates do not count as constraints.
func SuggestNarrowing(f *CompiledFilter, max int) []string {
	if max <= 0 {
		return nil
	}
	var out []string
	for _, name := range append(numericFields(), nonNumericFields()...) {
		if f.Constrained(name) {
			continue
		}
		out = append(out, Whitelist[name].Label)
		if len(out) == max {
			return out
		}
	}
	if len(out) == 0 {
		out = append(out, "tighter "+Whitelist["revenue_ksek"].Label)
	}
	return out
}
