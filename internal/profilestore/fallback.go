package profilestore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/model"
)

// Fallback composes a primary and secondary sink behind the repository
// interface. Writes try primary first; a primary failure falls through to
// secondary. Reads consult primary, then secondary on miss or error.
type Fallback struct {
	primary   ProfileRepository
	secondary ProfileRepository
}

// NewFallback builds the composite. primary may be nil when only the local
// sink is configured.
func NewFallback(primary, secondary ProfileRepository) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Upsert(ctx context.Context, profile *model.CompanyProfile) error {
	var errs []error

	if f.primary != nil {
		err := f.primary.Upsert(ctx, profile)
		if err == nil {
			return nil
		}
		zap.L().Warn("profilestore: primary upsert failed, trying secondary",
			zap.String("org_id", profile.OrgID),
			zap.Error(err),
		)
		errs = append(errs, err)
	}

	if f.secondary != nil {
		err := f.secondary.Upsert(ctx, profile)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no profile sinks configured"))
	}
	return &model.PersistenceError{OrgID: profile.OrgID, Errs: errs}
}

func (f *Fallback) Get(ctx context.Context, orgID string) (*model.CompanyProfile, error) {
	if f.primary != nil {
		profile, err := f.primary.Get(ctx, orgID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			zap.L().Warn("profilestore: primary get failed, trying secondary",
				zap.String("org_id", orgID),
				zap.Error(err),
			)
		}
	}
	if f.secondary != nil {
		return f.secondary.Get(ctx, orgID)
	}
	return nil, model.ErrNotFound
}

func (f *Fallback) Close() error {
	var errs []error
	if f.primary != nil {
		if err := f.primary.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.secondary != nil {
		if err := f.secondary.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
