package resolver

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nordscout/prospector/internal/model"
)

// AddressCache persists org id → web address facts in the shared local
// database so an external search is issued at most once ever per org id.
type AddressCache struct {
	db *sql.DB
}

// NewAddressCache wraps the shared local database.
func NewAddressCache(db *sql.DB) *AddressCache {
	return &AddressCache{db: db}
}

// Get returns the cached address for an org id, or model.ErrNotFound.
func (c *AddressCache) Get(ctx context.Context, orgID string) (string, error) {
	var address string
	err := c.db.QueryRowContext(ctx,
		`SELECT address FROM resolved_addresses WHERE org_id = ?`, orgID,
	).Scan(&address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", eris.Wrapf(err, "resolver: cache get %s", orgID)
	}
	return address, nil
}

// Put records a discovered address. Idempotent upsert keyed by org id.
func (c *AddressCache) Put(ctx context.Context, orgID, address string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO resolved_addresses (org_id, address, discovered_at) VALUES (?, ?, ?)
		 ON CONFLICT(org_id) DO UPDATE SET address = excluded.address`,
		orgID, address, time.Now().UTC(),
	)
	return eris.Wrapf(err, "resolver: cache put %s", orgID)
}
