package filter

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed exclusions.yaml
var exclusionsYAML []byte

// ExclusionRule is one predicate fragment of the standing exclusion policy.
type ExclusionRule struct {
	ID    string `yaml:"id"`
	Field string `yaml:"field"`
	Op    Op     `yaml:"op"`
	Value string `yaml:"value"`
	Note  string `yaml:"note"`
}

// ExclusionRuleSet is the versioned, non-overridable filter policy.
type ExclusionRuleSet struct {
	Version int             `yaml:"version"`
	Rules   []ExclusionRule `yaml:"rules"`
}

// LoadExclusions parses the embedded ruleset and validates every rule
// against the field whitelist.
func LoadExclusions() (*ExclusionRuleSet, error) {
	var rs ExclusionRuleSet
	if err := yaml.Unmarshal(exclusionsYAML, &rs); err != nil {
		return nil, eris.Wrap(err, "filter: parse exclusion ruleset")
	}
	for _, r := range rs.Rules {
		spec, ok := Whitelist[r.Field]
		if !ok {
			return nil, eris.Errorf("filter: exclusion rule %s references unknown field %q", r.ID, r.Field)
		}
		if !spec.allows(r.Op) {
			return nil, eris.Errorf("filter: exclusion rule %s uses operator %q illegal for %q", r.ID, r.Op, r.Field)
		}
	}
	return &rs, nil
}

// Apply ANDs the ruleset into the filter. Idempotent: a rule already present
// (matched by RuleID) is not injected twice, so refining turns do not stack
// duplicate policy predicates.
func (rs *ExclusionRuleSet) Apply(f *CompiledFilter) {
	present := make(map[string]bool, len(f.Predicates))
	for _, p := range f.Predicates {
		if p.RuleID != "" {
			present[p.RuleID] = true
		}
	}
	for _, r := range rs.Rules {
		if present[r.ID] {
			continue
		}
		f.Predicates = append(f.Predicates, Predicate{
			Field:  r.Field,
			Op:     r.Op,
			Value:  Fold(r.Value),
			RuleID: r.ID,
		})
	}
}
