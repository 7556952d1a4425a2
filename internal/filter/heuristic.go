package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The heuristic compiler maps a small fixed vocabulary of keywords onto
// predicates. It is the deterministic fallback when the generation service is
// unavailable or returns an unusable expression: the same prompt always
// yields the same filter.

var (
	// Matching happens on folded text, so the patterns use folded forms
	// ("hogst", "anstallda") only.
	rangeMSEKRe   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:-|–|till|to)\s*(\d+(?:[.,]\d+)?)\s*(?:m\b|mkr|msek|million|miljoner)`)
	overMSEKRe    = regexp.MustCompile(`(?:over|above|minst|more than|>)\s*(\d+(?:[.,]\d+)?)\s*(?:m\b|mkr|msek|million|miljoner)`)
	underMSEKRe   = regexp.MustCompile(`(?:under|below|hogst|less than|<)\s*(\d+(?:[.,]\d+)?)\s*(?:m\b|mkr|msek|million|miljoner)`)
	marginRe      = regexp.MustCompile(`margin(?:al)?\D{0,20}?(\d+)\s*%`)
	growthPctRe   = regexp.MustCompile(`(?:growth|tillvaxt|vaxer)\D{0,20}?(\d+)\s*%`)
	employeeRe    = regexp.MustCompile(`(\d+)\s*(?:-|–|till|to)\s*(\d+)\s*(?:employees|anstallda)`)
	employeeMinRe = regexp.MustCompile(`(?:over|minst|more than)\s*(\d+)\s*(?:employees|anstallda)`)
)

// industryVocabulary maps prompt keywords to folded industry_text patterns.
// Patterns are full stems on purpose: a bare "verk" would umbrella-match
// energiverk, vattenverk and half the municipal sector.
var industryVocabulary = []struct {
	keywords []string
	pattern  string
}{
	{[]string{"manufacturing", "tillverkning", "tillverkande", "tillverkare"}, "tillverk"},
	{[]string{"construction", "bygg", "byggbolag"}, "bygg"},
	{[]string{"transport", "logistics", "logistik", "åkeri"}, "transport"},
	{[]string{"food", "livsmedel"}, "livsmedel"},
	{[]string{"software", "mjukvara", "programvara", "saas"}, "programvar"},
	{[]string{"consulting", "konsult"}, "konsult"},
	{[]string{"wholesale", "grossist", "partihandel"}, "partihandel"},
}

// countyVocabulary maps folded prompt tokens to county values. Ordered so
// repeated compilation of the same prompt is deterministic.
var countyVocabulary = []struct{ token, county string }{
	{"stockholm", "Stockholm"},
	{"skane", "Skåne"},
	{"vastra gotaland", "Västra Götaland"},
	{"uppsala", "Uppsala"},
	{"ostergotland", "Östergötland"},
	{"jonkoping", "Jönköping"},
	{"halland", "Halland"},
	{"dalarna", "Dalarna"},
	{"varmland", "Värmland"},
	{"orebro", "Örebro"},
	{"norrbotten", "Norrbotten"},
	{"vasterbotten", "Västerbotten"},
}

var profitableKeywords = []string{"profitable", "lonsam", "lonsamma", "vinst", "gar med vinst"}

var growthKeywords = []string{"growing", "growth", "vaxande", "tillvaxt", "expanderande"}

// CompileHeuristic deterministically maps prompt keywords onto predicates.
// It never fails; an unrecognised prompt yields a filter with no user
// predicates (the exclusion policy still applies downstream).
func CompileHeuristic(prompt string, now time.Time) *CompiledFilter {
	text := Fold(prompt)

	f := &CompiledFilter{
		RawPrompt:   prompt,
		GeneratedAt: now.UTC(),
		Source:      SourceHeuristic,
	}

	// Revenue bands interpreted in MSEK, stored in KSEK.
	if m := rangeMSEKRe.FindStringSubmatch(text); m != nil {
		f.add("revenue_ksek", OpGte, msekToKSEK(m[1]))
		f.add("revenue_ksek", OpLte, msekToKSEK(m[2]))
	} else if m := overMSEKRe.FindStringSubmatch(text); m != nil {
		f.add("revenue_ksek", OpGte, msekToKSEK(m[1]))
	} else if m := underMSEKRe.FindStringSubmatch(text); m != nil {
		f.add("revenue_ksek", OpLte, msekToKSEK(m[1]))
	}

	for _, kw := range profitableKeywords {
		if strings.Contains(text, kw) {
			f.add("profit_ksek", OpGt, float64(0))
			break
		}
	}

	if m := marginRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		op := OpGte
		if strings.Contains(text, "under") || strings.Contains(text, "below") || strings.Contains(text, "less than") {
			op = OpLte
		}
		f.add("ebit_margin_pct", op, n)
	}

	if m := growthPctRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		f.add("revenue_growth_pct", OpGte, n)
	} else {
		for _, kw := range growthKeywords {
			if strings.Contains(text, kw) {
				f.add("revenue_growth_pct", OpGte, float64(10))
				break
			}
		}
	}

	if m := employeeRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		f.add("employees", OpGte, lo)
		f.add("employees", OpLte, hi)
	} else if m := employeeMinRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		f.add("employees", OpGte, n)
	}

	for _, entry := range industryVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(text, Fold(kw)) {
				f.add("industry_text", OpContains, entry.pattern)
				break
			}
		}
	}

	for _, entry := range countyVocabulary {
		if strings.Contains(text, entry.token) {
			f.add("county", OpEq, entry.county)
			break
		}
	}

	if strings.Contains(text, "aktiebolag") {
		f.add("legal_form", OpEq, "AB")
	}

	return f
}

func (f *CompiledFilter) add(field string, op Op, value any) {
	for _, p := range f.Predicates {
		if p.Field == field && p.Op == op {
			return
		}
	}
	f.Predicates = append(f.Predicates, Predicate{Field: field, Op: op, Value: value})
}

func msekToKSEK(s string) float64 {
	n, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return n * 1000
}
