// Package localdb opens the shared local SQLite database that backs the
// secondary profile sink, the resolved-address cache, the knowledge-base
// chunk index, and batch bookkeeping.
package localdb

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const migration = `
CREATE TABLE IF NOT EXISTS profiles (
	org_id     TEXT PRIMARY KEY,
	profile    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS resolved_addresses (
	org_id        TEXT PRIMARY KEY,
	address       TEXT NOT NULL,
	discovered_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS kb_chunks (
	id        TEXT PRIMARY KEY,
	doc_hash  TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	result     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kb_chunks_doc_hash ON kb_chunks(doc_hash);
`

// Open opens (creating if needed) the local database and applies migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "localdb: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "localdb: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "localdb: migrate")
	}
	return db, nil
}
