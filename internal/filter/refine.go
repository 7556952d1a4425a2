package filter

import (
	"strings"
	"time"
)

// Refinement combines a prior turn's filter with the new turn's candidate
// predicates. The default is additive: new constraints AND onto the prior
// ones. Only explicit removal language drops predicates, and policy
// (exclusion) predicates are never removable.

// removalKeywords is the fixed vocabulary that switches a field from
// additive to subtractive treatment.
var removalKeywords = []string{
	"remove", "drop", "ignore the", "without the", "exclude now",
	"ta bort", "ignorera", "utan",
}

// fieldAliases maps prompt vocabulary to the whitelisted fields a removal
// phrase refers to.
var fieldAliases = []struct {
	tokens []string
	fields []string
}{
	{[]string{"revenue", "omsattning"}, []string{"revenue_ksek"}},
	{[]string{"profit", "vinst", "lonsamhet"}, []string{"profit_ksek"}},
	{[]string{"margin", "marginal"}, []string{"ebit_margin_pct"}},
	{[]string{"growth", "tillvaxt"}, []string{"revenue_growth_pct"}},
	{[]string{"employee", "anstallda"}, []string{"employees"}},
	{[]string{"county", "lan", "region", "location"}, []string{"county", "city"}},
	{[]string{"city", "stad"}, []string{"city"}},
	{[]string{"industry", "bransch", "sector", "property", "fastighet"}, []string{"industry_text", "industry_code"}},
	{[]string{"legal form", "bolagsform"}, []string{"legal_form"}},
}

// DetectRemovals returns the whitelisted fields the prompt asks to drop.
// Empty unless the prompt contains removal language.
func DetectRemovals(prompt string) []string {
	text := Fold(prompt)

	hasRemoval := false
	for _, kw := range removalKeywords {
		if containsWord(text, kw) {
			hasRemoval = true
			break
		}
	}
	if !hasRemoval {
		return nil
	}

	var fields []string
	seen := make(map[string]bool)
	for _, alias := range fieldAliases {
		for _, tok := range alias.tokens {
			if strings.Contains(text, tok) {
				for _, f := range alias.fields {
					if !seen[f] {
						seen[f] = true
						fields = append(fields, f)
					}
				}
				break
			}
		}
	}
	return fields
}

// containsWord reports whether kw occurs in text delimited by non-word
// boundaries, so "utan" does not fire inside "utanför". Text is folded
// before the call, so a byte-level check suffices.
func containsWord(text, kw string) bool {
	for start := 0; start+len(kw) <= len(text); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(kw)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// Merge produces the refined filter: prior predicates minus removals, plus
// the candidate's new predicates. Predicates injected by the exclusion
// policy survive removal requests unconditionally.
func Merge(prior, candidate *CompiledFilter, removals []string, now time.Time) *CompiledFilter {
	if prior == nil {
		out := candidate.Clone()
		out.GeneratedAt = now.UTC()
		return out
	}

	removed := make(map[string]bool, len(removals))
	for _, f := range removals {
		removed[f] = true
	}

	out := &CompiledFilter{
		RawPrompt:   candidate.RawPrompt,
		GeneratedAt: now.UTC(),
		Source:      candidate.Source,
		Scope:       candidate.Scope,
	}

	for _, p := range prior.Predicates {
		if removed[p.Field] && !p.Policy() {
			continue
		}
		out.Predicates = append(out.Predicates, p)
	}

	for _, p := range candidate.Predicates {
		if p.Policy() {
			continue // policy re-applied downstream, never merged from candidates
		}
		out.upsertPredicate(p)
	}

	return out
}

// upsertPredicate adds a predicate, replacing an existing non-policy
// predicate with the same field and operator so a refined bound ("over 10M"
// then "over 20M") tightens instead of contradicting.
func (f *CompiledFilter) upsertPredicate(p Predicate) {
	for i, existing := range f.Predicates {
		if existing.Policy() {
			continue
		}
		if existing.Field == p.Field && existing.Op == p.Op {
			f.Predicates[i] = p
			return
		}
	}
	f.Predicates = append(f.Predicates, p)
}
