package profilestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordscout/prospector/internal/model"
)

// fakeRepo is a scriptable ProfileRepository.
type fakeRepo struct {
	upsertErr error
	getErr    error
	profile   *model.CompanyProfile

	upserts int
	gets    int
}

func (r *fakeRepo) Upsert(_ context.Context, p *model.CompanyProfile) error {
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.profile = p
	return nil
}

func (r *fakeRepo) Get(_ context.Context, _ string) (*model.CompanyProfile, error) {
	r.gets++
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.profile == nil {
		return nil, model.ErrNotFound
	}
	return r.profile, nil
}

func (r *fakeRepo) Close() error { return nil }

func TestFallback_UpsertPrimarySucceeds(t *testing.T) {
	primary := &fakeRepo{}
	secondary := &fakeRepo{}
	f := NewFallback(primary, secondary)

	require.NoError(t, f.Upsert(context.Background(), testProfile("5560001234")))
	assert.Equal(t, 1, primary.upserts)
	assert.Zero(t, secondary.upserts)
}

func TestFallback_UpsertFallsThroughToSecondary(t *testing.T) {
	primary := &fakeRepo{upsertErr: errors.New("connection refused")}
	secondary := &fakeRepo{}
	f := NewFallback(primary, secondary)

	require.NoError(t, f.Upsert(context.Background(), testProfile("5560001234")))
	assert.Equal(t, 1, primary.upserts)
	assert.Equal(t, 1, secondary.upserts)
	assert.NotNil(t, secondary.profile)
}

func TestFallback_UpsertBothFail(t *testing.T) {
	primary := &fakeRepo{upsertErr: errors.New("primary down")}
	secondary := &fakeRepo{upsertErr: errors.New("disk full")}
	f := NewFallback(primary, secondary)

	err := f.Upsert(context.Background(), testProfile("5560001234"))
	require.Error(t, err)

	var perr *model.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "5560001234", perr.OrgID)
	assert.Len(t, perr.Errs, 2)
}

func TestFallback_GetChecksSecondaryOnMiss(t *testing.T) {
	primary := &fakeRepo{}
	secondary := &fakeRepo{profile: testProfile("5560001234")}
	f := NewFallback(primary, secondary)

	got, err := f.Get(context.Background(), "5560001234")
	require.NoError(t, err)
	assert.Equal(t, "5560001234", got.OrgID)
	assert.Equal(t, 1, primary.gets)
}

func TestFallback_NilPrimary(t *testing.T) {
	secondary := &fakeRepo{}
	f := NewFallback(nil, secondary)

	require.NoError(t, f.Upsert(context.Background(), testProfile("5560001234")))
	assert.Equal(t, 1, secondary.upserts)

	_, err := f.Get(context.Background(), "5569999999")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
