package filter

import "sort"

// FieldKind partitions whitelisted fields by the operators they accept.
type FieldKind int

const (
	KindNumeric FieldKind = iota
	KindCategorical
	KindText
)

// FieldSpec describes one whitelisted queryable field.
type FieldSpec struct {
	Name   string
	Kind   FieldKind
	Column string
	// Label is the operator-facing description used in refinement suggestions.
	Label string
}

func (s FieldSpec) allows(op Op) bool {
	switch s.Kind {
	case KindNumeric:
		switch op {
		case OpEq, OpNeq, OpGte, OpLte, OpGt, OpLt:
			return true
		}
	case KindCategorical:
		switch op {
		case OpEq, OpNeq:
			return true
		}
	case KindText:
		switch op {
		case OpEq, OpContains, OpNotContains:
			return true
		}
	}
	return false
}

// Whitelist is the fixed set of queryable fields. Every leaf predicate of a
// CompiledFilter must reference one of these.
var Whitelist = map[string]FieldSpec{
	"revenue_ksek":       {Name: "revenue_ksek", Kind: KindNumeric, Column: "revenue_ksek", Label: "revenue band (KSEK)"},
	"profit_ksek":        {Name: "profit_ksek", Kind: KindNumeric, Column: "profit_ksek", Label: "profit band (KSEK)"},
	"ebit_margin_pct":    {Name: "ebit_margin_pct", Kind: KindNumeric, Column: "ebit_margin_pct", Label: "EBIT margin threshold"},
	"revenue_growth_pct": {Name: "revenue_growth_pct", Kind: KindNumeric, Column: "revenue_growth_pct", Label: "revenue growth band"},
	"employees":          {Name: "employees", Kind: KindNumeric, Column: "employees", Label: "employee count band"},
	"equity_ratio_pct":   {Name: "equity_ratio_pct", Kind: KindNumeric, Column: "equity_ratio_pct", Label: "equity ratio threshold"},
	"founded_year":       {Name: "founded_year", Kind: KindNumeric, Column: "founded_year", Label: "founding year band"},
	"industry_code":      {Name: "industry_code", Kind: KindCategorical, Column: "industry_code", Label: "SNI industry code"},
	"legal_form":         {Name: "legal_form", Kind: KindCategorical, Column: "legal_form", Label: "legal form"},
	"county":             {Name: "county", Kind: KindCategorical, Column: "county", Label: "county"},
	"name":               {Name: "name", Kind: KindText, Column: "name", Label: "company name"},
	"industry_text":      {Name: "industry_text", Kind: KindText, Column: "industry_text", Label: "industry description"},
	"city":               {Name: "city", Kind: KindText, Column: "city", Label: "city"},
}

// numericFields returns whitelisted numeric field names in stable order,
// used when computing refinement suggestions.
func numericFields() []string {
	return fieldsOfKind(func(k FieldKind) bool { return k == KindNumeric })
}

// nonNumericFields returns categorical and text field names in stable order.
func nonNumericFields() []string {
	return fieldsOfKind(func(k FieldKind) bool { return k != KindNumeric })
}

func fieldsOfKind(want func(FieldKind) bool) []string {
	var out []string
	for name, spec := range Whitelist {
		if want(spec.Kind) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
