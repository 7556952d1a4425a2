package profilestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/localdb"
	"github.com/nordscout/prospector/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLite(db)
}

func testProfile(orgID string) *model.CompanyProfile {
	return &model.CompanyProfile{
		OrgID:   orgID,
		Address: "https://example.se",
		Summary: "Tillverkare av precisionskomponenter.",
		Classification: model.Classification{
			Sector:    "manufacturing",
			Subsector: "precision components",
		},
		FitScore:           7,
		DefensibilityScore: 6,
		RiskFlags:          []string{"customer concentration"},
		GenerationAgent:    "claude-haiku-4-5-20251001",
		GeneratedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSQLite_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, testProfile("5560001234")))

	got, err := st.Get(ctx, "5560001234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.se", got.Address)
	assert.Equal(t, 7, got.FitScore)
	assert.Equal(t, "manufacturing", got.Classification.Sector)
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.Get(context.Background(), "5569999999")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, testProfile("5560001234")))

	updated := testProfile("5560001234")
	updated.FitScore = 9
	updated.Summary = "Updated after refresh."
	require.NoError(t, st.Upsert(ctx, updated))

	got, err := st.Get(ctx, "5560001234")
	require.NoError(t, err)
	assert.Equal(t, 9, got.FitScore)
	assert.Equal(t, "Updated after refresh.", got.Summary)
}
