// Package filter defines the structured, re-executable representation of a
// company query: a conjunction of predicates over a fixed whitelist of
// columns, plus the standing exclusion policy, the deterministic fallback
// compiler, and refinement semantics.
package filter

import (
	"time"

	"github.com/rotisserie/eris"
)

// Op is a predicate operator.
type Op string

const (
	OpEq          Op = "eq"
	OpNeq         Op = "neq"
	OpGte         Op = "gte"
	OpLte         Op = "lte"
	OpGt          Op = "gt"
	OpLt          Op = "lt"
	OpContains    Op = "contains"
	OpNotContains Op = "not_contains"
)

// Source records how a filter was produced.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic-fallback"
)

// Scope records whether a query needs profile-based post-filtering in
// addition to financial predicates. Computed once per compile call.
type Scope string

const (
	ScopeFinancialOnly        Scope = "financial_only"
	ScopeFinancialPlusProfile Scope = "financial_plus_profile"
)

// Predicate is a single leaf condition. Predicates in a CompiledFilter are
// combined with AND.
type Predicate struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
	// RuleID is set for predicates injected by the exclusion policy. Such
	// predicates are never user-removable within a query turn.
	RuleID string `json:"rule_id,omitempty"`
}

// Policy reports whether the predicate was injected by the exclusion policy.
func (p Predicate) Policy() bool { return p.RuleID != "" }

// CompiledFilter is a structured, re-executable representation of a query.
type CompiledFilter struct {
	Predicates  []Predicate `json:"predicates"`
	RawPrompt   string      `json:"raw_prompt"`
	GeneratedAt time.Time   `json:"generated_at"`
	Source      Source      `json:"source"`
	Scope       Scope       `json:"scope"`
}

// Validate checks every predicate against the field whitelist and the
// operators legal for the field's kind. A violation rejects the whole filter
// before execution; nothing is silently dropped.
func (f *CompiledFilter) Validate() error {
	for _, p := range f.Predicates {
		spec, ok := Whitelist[p.Field]
		if !ok {
			return eris.Errorf("filter: field %q is not whitelisted", p.Field)
		}
		if !spec.allows(p.Op) {
			return eris.Errorf("filter: operator %q not allowed on field %q", p.Op, p.Field)
		}
	}
	return nil
}

// Constrained reports whether any non-policy predicate references the field.
func (f *CompiledFilter) Constrained(field string) bool {
	for _, p := range f.Predicates {
		if !p.Policy() && p.Field == field {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the filter.
func (f *CompiledFilter) Clone() *CompiledFilter {
	out := *f
	out.Predicates = append([]Predicate(nil), f.Predicates...)
	return &out
}
