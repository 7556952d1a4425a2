// Package profilestore persists derived company profiles behind a single
// repository interface with two independent sink implementations. The
// orchestrator depends only on the interface and tries primary then
// secondary.
package profilestore

import (
	"context"

	"github.com/nordscout/prospector/internal/model"
)

// ProfileRepository is the contract both sinks expose. Upsert is keyed by
// org id, last-write-wins, never producing duplicate rows. Get returns
// model.ErrNotFound on a miss.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *model.CompanyProfile) error
	Get(ctx context.Context, orgID string) (*model.CompanyProfile, error)
	Close() error
}
