package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/localdb"
	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/internal/profilestore"
	"github.com/nordscout/prospector/internal/usage"
	"github.com/nordscout/prospector/pkg/jina"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeSearch is a scriptable jina.Client recording search volume.
type fakeSearch struct {
	results  []jina.SearchResult
	err      error
	searches int
}

func (s *fakeSearch) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeSearch) Search(_ context.Context, _ string) (*jina.SearchResponse, error) {
	s.searches++
	if s.err != nil {
		return nil, s.err
	}
	return &jina.SearchResponse{Code: 200, Data: s.results}, nil
}

func newTestResolver(t *testing.T, search jina.Client) (*Resolver, *AddressCache, *usage.Counter, profilestore.ProfileRepository) {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	profiles := profilestore.NewSQLite(db)
	cache := NewAddressCache(db)
	counter := usage.NewCounter("claude-haiku-4-5-20251001")
	return New(profiles, cache, search, counter, 5*time.Second), cache, counter, profiles
}

func TestResolve_ProfileAddressShortCircuits(t *testing.T) {
	search := &fakeSearch{}
	r, _, counter, profiles := newTestResolver(t, search)
	ctx := context.Background()

	require.NoError(t, profiles.Upsert(ctx, &model.CompanyProfile{
		OrgID:   "5560001234",
		Address: "https://kanda.se",
	}))

	address, err := r.Resolve(ctx, "5560001234", "Kända AB")
	require.NoError(t, err)
	assert.Equal(t, "https://kanda.se", address)
	assert.Zero(t, search.searches)
	assert.Equal(t, int64(1), counter.Snapshot().SearchesSaved)
}

func TestResolve_CacheHitSkipsSearch(t *testing.T) {
	search := &fakeSearch{}
	r, cache, _, _ := newTestResolver(t, search)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "5560001234", "https://cachad.se"))

	address, err := r.Resolve(ctx, "5560001234", "Cachad AB")
	require.NoError(t, err)
	assert.Equal(t, "https://cachad.se", address)
	assert.Zero(t, search.searches)
}

func TestResolve_SearchOnceThenCached(t *testing.T) {
	search := &fakeSearch{results: []jina.SearchResult{
		{URL: "https://www.allabolag.se/5560001234"}, // aggregator, skipped
		{URL: "https://www.nyfunnen.se/om-oss"},
	}}
	r, cache, counter, _ := newTestResolver(t, search)
	ctx := context.Background()

	address, err := r.Resolve(ctx, "5560001234", "Nyfunnen AB")
	require.NoError(t, err)
	assert.Equal(t, "https://www.nyfunnen.se", address)
	assert.Equal(t, 1, search.searches)

	// The hit must be in the persistent cache already.
	cached, err := cache.Get(ctx, "5560001234")
	require.NoError(t, err)
	assert.Equal(t, address, cached)

	// Repeated resolves never search again.
	for i := 0; i < 3; i++ {
		again, err := r.Resolve(ctx, "5560001234", "Nyfunnen AB")
		require.NoError(t, err)
		assert.Equal(t, address, again)
	}
	assert.Equal(t, 1, search.searches)

	snap := counter.Snapshot()
	assert.Equal(t, int64(1), snap.SearchesMade)
	assert.Equal(t, int64(3), snap.SearchesSaved)
}

// gatedSearch holds every Search open until released, so a test can line up
// concurrent resolves against it. Search volume is counted under a mutex.
type gatedSearch struct {
	results []jina.SearchResult
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	searches int
}

func (s *gatedSearch) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *gatedSearch) Search(_ context.Context, _ string) (*jina.SearchResponse, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()
	s.entered <- struct{}{}
	<-s.release
	return &jina.SearchResponse{Code: 200, Data: s.results}, nil
}

func (s *gatedSearch) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

func TestResolve_ConcurrentDuplicatesShareOneSearch(t *testing.T) {
	search := &gatedSearch{
		results: []jina.SearchResult{{URL: "https://www.samtida.se"}},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	r, _, counter, _ := newTestResolver(t, search)
	ctx := context.Background()

	type outcome struct {
		address string
		err     error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			address, err := r.Resolve(ctx, "5560001234", "Samtida AB")
			results <- outcome{address, err}
		}()
	}

	// The first caller is now inside the search; give the second time to
	// reach the same point before letting the search complete.
	<-search.entered
	time.Sleep(50 * time.Millisecond)
	close(search.release)

	for i := 0; i < 2; i++ {
		out := <-results
		require.NoError(t, out.err)
		assert.Equal(t, "https://www.samtida.se", out.address)
	}
	assert.Equal(t, 1, search.count())

	snap := counter.Snapshot()
	assert.Equal(t, int64(1), snap.SearchesMade)
	assert.Equal(t, int64(1), snap.SearchesSaved)
}

func TestResolve_NoUsableResult(t *testing.T) {
	search := &fakeSearch{results: []jina.SearchResult{
		{URL: "https://www.hitta.se/foretag/123"},
		{URL: "https://sv.wikipedia.org/wiki/Bolaget"},
	}}
	r, _, _, _ := newTestResolver(t, search)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "5560001234", "Osynlig AB")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// A miss is memoized for the batch: no second search for the same org.
	_, err = r.Resolve(ctx, "5560001234", "Osynlig AB")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, 1, search.searches)
}

func TestResolve_SearchErrorIsNotFound(t *testing.T) {
	search := &fakeSearch{err: errors.New("rate limited")}
	r, _, _, _ := newTestResolver(t, search)

	_, err := r.Resolve(context.Background(), "5560001234", "Otur AB")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolve_EmptyNameNeverSearches(t *testing.T) {
	search := &fakeSearch{}
	r, _, _, _ := newTestResolver(t, search)

	_, err := r.Resolve(context.Background(), "5560001234", "  ")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, search.searches)
}

func TestCanonicalAddress(t *testing.T) {
	assert.Equal(t, "https://www.exempel.se", canonicalAddress("http://www.Exempel.se/om-oss?x=1"))
	assert.Empty(t, canonicalAddress("https://allabolag.se/5560001234"))
	assert.Empty(t, canonicalAddress("https://se.linkedin.com/company/exempel"))
	assert.Empty(t, canonicalAddress("not a url"))
}
