package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func findPredicate(t *testing.T, f *CompiledFilter, field string, op Op) Predicate {
	t.Helper()
	for _, p := range f.Predicates {
		if p.Field == field && p.Op == op {
			return p
		}
	}
	t.Fatalf("no predicate %s %s in %+v", field, op, f.Predicates)
	return Predicate{}
}

func TestCompileHeuristic_RevenueOverMSEK(t *testing.T) {
	f := CompileHeuristic("companies with revenue over 10 million SEK", testNow)

	p := findPredicate(t, f, "revenue_ksek", OpGte)
	assert.Equal(t, float64(10000), p.Value) // MSEK interpreted, KSEK stored
	assert.Equal(t, SourceHeuristic, f.Source)
	assert.NoError(t, f.Validate())
}

func TestCompileHeuristic_RevenueBand(t *testing.T) {
	f := CompileHeuristic("omsättning 20-50 MSEK", testNow)

	assert.Equal(t, float64(20000), findPredicate(t, f, "revenue_ksek", OpGte).Value)
	assert.Equal(t, float64(50000), findPredicate(t, f, "revenue_ksek", OpLte).Value)
}

func TestCompileHeuristic_SwedishVocabulary(t *testing.T) {
	f := CompileHeuristic("lönsamma tillverkande bolag i Skåne med minst 20 anställda", testNow)

	assert.Equal(t, float64(0), findPredicate(t, f, "profit_ksek", OpGt).Value)
	assert.Equal(t, "tillverk", findPredicate(t, f, "industry_text", OpContains).Value)
	assert.Equal(t, "Skåne", findPredicate(t, f, "county", OpEq).Value)
	assert.Equal(t, float64(20), findPredicate(t, f, "employees", OpGte).Value)
}

func TestCompileHeuristic_MarginAndGrowth(t *testing.T) {
	f := CompileHeuristic("growing companies with margin above 15 %", testNow)

	assert.Equal(t, float64(15), findPredicate(t, f, "ebit_margin_pct", OpGte).Value)
	assert.Equal(t, float64(10), findPredicate(t, f, "revenue_growth_pct", OpGte).Value)
}

func TestCompileHeuristic_Deterministic(t *testing.T) {
	const prompt = "profitable construction companies in Stockholm, revenue over 25 MSEK"
	a := CompileHeuristic(prompt, testNow)
	b := CompileHeuristic(prompt, testNow)
	require.Equal(t, a, b)
}

func TestCompileHeuristic_UnrecognisedPromptYieldsEmptyFilter(t *testing.T) {
	f := CompileHeuristic("tell me a joke about herring", testNow)
	assert.Empty(t, f.Predicates)
	assert.Equal(t, SourceHeuristic, f.Source)
}

func TestCompileHeuristic_NoDuplicatePredicates(t *testing.T) {
	f := CompileHeuristic("bygg bygg byggbolag construction", testNow)

	count := 0
	for _, p := range f.Predicates {
		if p.Field == "industry_text" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
