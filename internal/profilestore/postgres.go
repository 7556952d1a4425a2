package profilestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nordscout/prospector/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock implements it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is the primary profile sink.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS company_profiles (
	org_id     TEXT PRIMARY KEY,
	profile    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPostgres opens a pool against the profile database and ensures the
// schema exists.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "profilestore: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "profilestore: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "profilestore: ping")
	}
	store := &PostgresStore{pool: pool, closeFn: pool.Close}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "profilestore: migrate")
	}
	return store, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, profile *model.CompanyProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "profilestore: marshal profile")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_profiles (org_id, profile, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (org_id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = EXCLUDED.updated_at`,
		profile.OrgID, data, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "profilestore: upsert %s", profile.OrgID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, orgID string) (*model.CompanyProfile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM company_profiles WHERE org_id = $1`, orgID,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, eris.Wrapf(err, "profilestore: get %s", orgID)
	}

	var profile model.CompanyProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, eris.Wrapf(err, "profilestore: unmarshal %s", orgID)
	}
	return &profile, nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
