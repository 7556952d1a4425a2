package compiler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/config"
	"github.com/nordscout/prospector/internal/filter"
	"github.com/nordscout/prospector/internal/localdb"
	"github.com/nordscout/prospector/internal/retriever"
	"github.com/nordscout/prospector/pkg/anthropic"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// failingEmbedder forces the retriever onto its static fallback context so
// compiler tests need no embedding service.
type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errors.New("embeddings unavailable")
}

// fakeAI returns one scripted completion or error.
type fakeAI struct {
	response string
	err      error
	calls    int
}

func (a *fakeAI) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: a.response}},
		Usage:   anthropic.TokenUsage{InputTokens: 200, OutputTokens: 80},
	}, nil
}

// fakeStore is a scriptable CompanyStore.
type fakeStore struct {
	count     int
	countErr  error
	orgIDs    []string
	selectErr error

	lastFilter *filter.CompiledFilter
}

func (s *fakeStore) Select(_ context.Context, f *filter.CompiledFilter, limit int) ([]string, error) {
	s.lastFilter = f
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	if len(s.orgIDs) > limit {
		return s.orgIDs[:limit], nil
	}
	return s.orgIDs, nil
}

func (s *fakeStore) Count(_ context.Context, f *filter.CompiledFilter) (int, error) {
	s.lastFilter = f
	return s.count, s.countErr
}

func (s *fakeStore) Name(_ context.Context, _ string) (string, error) { return "", nil }

func (s *fakeStore) FinancialContext(_ context.Context, _ string) (string, error) { return "", nil }

func testConfig() config.Config {
	return config.Config{
		Anthropic: config.AnthropicConfig{
			Model:       "claude-haiku-4-5-20251001",
			MaxTokens:   2048,
			TimeoutSecs: 5,
		},
		Query: config.QueryConfig{
			PageSize:      50,
			ResultCeiling: 300,
			RetrieverK:    4,
		},
	}
}

func newTestCompiler(t *testing.T, ai anthropic.Client, store *fakeStore) *Compiler {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ret := retriever.New(db, failingEmbedder{})
	c, err := New(ret, ai, store, testConfig())
	require.NoError(t, err)
	return c
}

func policyCount(f *filter.CompiledFilter) int {
	n := 0
	for _, p := range f.Predicates {
		if p.Policy() {
			n++
		}
	}
	return n
}

func TestCompile_LLMPath(t *testing.T) {
	ai := &fakeAI{response: `{"predicates":[{"field":"revenue_ksek","op":"gte","value":10000}]}`}
	store := &fakeStore{count: 42, orgIDs: []string{"5560001234", "5560005678"}}
	c := newTestCompiler(t, ai, store)

	compiled, result, err := c.Compile(context.Background(), "revenue over 10 MSEK", nil)
	require.NoError(t, err)

	assert.Equal(t, filter.SourceLLM, compiled.Source)
	assert.Positive(t, policyCount(compiled), "exclusion policy must be injected")
	assert.Equal(t, 42, result.TotalMatched)
	assert.Equal(t, 2, result.ReturnedCount)
	assert.False(t, result.Capped)
	assert.Empty(t, result.Suggestions)

	// The executed filter is the one with policy predicates.
	assert.Equal(t, compiled, store.lastFilter)
}

func TestCompile_GarbageResponseFallsBackToHeuristic(t *testing.T) {
	ai := &fakeAI{response: "I am sorry, I cannot help with that."}
	store := &fakeStore{count: 5}
	c := newTestCompiler(t, ai, store)

	compiled, _, err := c.Compile(context.Background(), "companies with revenue over 10 million SEK", nil)
	require.NoError(t, err)

	assert.Equal(t, filter.SourceHeuristic, compiled.Source)
	found := false
	for _, p := range compiled.Predicates {
		if p.Field == "revenue_ksek" && p.Op == filter.OpGte {
			assert.Equal(t, float64(10000), p.Value)
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompile_ModelErrorFallsBackToHeuristic(t *testing.T) {
	ai := &fakeAI{err: errors.New("api overloaded")}
	store := &fakeStore{}
	c := newTestCompiler(t, ai, store)

	compiled, _, err := c.Compile(context.Background(), "profitable companies in Halland", nil)
	require.NoError(t, err)
	assert.Equal(t, filter.SourceHeuristic, compiled.Source)
	assert.Equal(t, 1, ai.calls)
}

func TestCompile_CappedResultCarriesSuggestions(t *testing.T) {
	ai := &fakeAI{response: `{"predicates":[{"field":"county","op":"eq","value":"Stockholm"}]}`}
	store := &fakeStore{count: 4800, orgIDs: make([]string, 50)}
	c := newTestCompiler(t, ai, store)

	_, result, err := c.Compile(context.Background(), "companies in Stockholm", nil)
	require.NoError(t, err)

	assert.True(t, result.Capped)
	require.NotEmpty(t, result.Suggestions)
	assert.LessOrEqual(t, len(result.Suggestions), 3)
	assert.Equal(t, 4800, result.TotalMatched)
	assert.Equal(t, 50, result.ReturnedCount)
}

func TestCompile_RefinementKeepsPriorAndPolicy(t *testing.T) {
	ai := &fakeAI{response: `{"predicates":[{"field":"county","op":"eq","value":"Skåne"}]}`}
	store := &fakeStore{count: 12}
	c := newTestCompiler(t, ai, store)
	ctx := context.Background()

	prior, _, err := c.Compile(ctx, "revenue over 10 MSEK", nil)
	require.NoError(t, err)
	priorPolicies := policyCount(prior)

	ai.response = `{"predicates":[{"field":"employees","op":"gte","value":20}]}`
	refined, _, err := c.Compile(ctx, "also at least 20 employees", prior)
	require.NoError(t, err)

	assert.True(t, refined.Constrained("county"))
	assert.True(t, refined.Constrained("employees"))
	// Policy predicates do not stack across turns.
	assert.Equal(t, priorPolicies, policyCount(refined))
}

func TestCompile_RemovalRequestCannotDropPolicy(t *testing.T) {
	ai := &fakeAI{response: `{"predicates":[]}`}
	store := &fakeStore{count: 12}
	c := newTestCompiler(t, ai, store)
	ctx := context.Background()

	prior, _, err := c.Compile(ctx, "revenue over 10 MSEK", nil)
	require.NoError(t, err)
	priorPolicies := policyCount(prior)
	require.Positive(t, priorPolicies)

	refined, _, err := c.Compile(ctx, "remove the property company exclusion", prior)
	require.NoError(t, err)
	assert.Equal(t, priorPolicies, policyCount(refined))
}

func TestCompile_StoreErrorSurfaces(t *testing.T) {
	ai := &fakeAI{response: `{"predicates":[]}`}
	store := &fakeStore{countErr: errors.New("db down")}
	c := newTestCompiler(t, ai, store)

	compiled, result, err := c.Compile(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.NotNil(t, compiled)
}
