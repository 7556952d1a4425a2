package profilestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nordscout/prospector/internal/model"
)

// SQLiteStore is the secondary profile sink, sharing the local database
// opened by localdb.Open. It does not own the handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite wraps the shared local database.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Upsert(ctx context.Context, profile *model.CompanyProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "profilestore: marshal profile")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (org_id, profile, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(org_id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`,
		profile.OrgID, string(data), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "profilestore: sqlite upsert %s", profile.OrgID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, orgID string) (*model.CompanyProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM profiles WHERE org_id = ?`, orgID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, eris.Wrapf(err, "profilestore: sqlite get %s", orgID)
	}

	var profile model.CompanyProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, eris.Wrapf(err, "profilestore: sqlite unmarshal %s", orgID)
	}
	return &profile, nil
}

// Close is a no-op; the shared database handle is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }
