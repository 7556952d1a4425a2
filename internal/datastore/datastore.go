// Package datastore executes compiled filters against the read-only company
// data store. It renders parameterized SQL from whitelisted columns only and
// never writes.
package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nordscout/prospector/internal/filter"
	"github.com/nordscout/prospector/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the datastore. pgxmock
// implements it for tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CompanyStore reads candidate companies and financial context.
type CompanyStore interface {
	Select(ctx context.Context, f *filter.CompiledFilter, limit int) ([]string, error)
	Count(ctx context.Context, f *filter.CompiledFilter) (int, error)
	Name(ctx context.Context, orgID string) (string, error)
	FinancialContext(ctx context.Context, orgID string) (string, error)
}

// PGStore implements CompanyStore over Postgres.
type PGStore struct {
	pool Pool
}

// New creates a PGStore on an existing pool.
func New(pool Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Connect opens a pgx pool against the company database.
func Connect(ctx context.Context, connString string, maxConns int32) (*PGStore, func(), error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, nil, eris.Wrap(err, "datastore: parse config")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, eris.Wrap(err, "datastore: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, eris.Wrap(err, "datastore: ping")
	}
	return &PGStore{pool: pool}, pool.Close, nil
}

// renderWhere builds the WHERE clause and positional args for a validated
// filter. Column names come from the whitelist, never from the filter text.
func renderWhere(f *filter.CompiledFilter) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}

	var clauses []string
	var args []any
	for _, p := range f.Predicates {
		spec := filter.Whitelist[p.Field]
		n := len(args) + 1
		switch p.Op {
		case filter.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpNeq:
			clauses = append(clauses, fmt.Sprintf("%s <> $%d", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpGte:
			clauses = append(clauses, fmt.Sprintf("%s >= $%d", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpLte:
			clauses = append(clauses, fmt.Sprintf("%s <= $%d", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpGt:
			clauses = append(clauses, fmt.Sprintf("%s > $%d", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpLt:
			clauses = append(clauses, fmt.Sprintf("%s < $%d", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpContains:
			clauses = append(clauses, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", spec.Column, n))
			args = append(args, p.Value)
		case filter.OpNotContains:
			clauses = append(clauses, fmt.Sprintf("%s NOT ILIKE '%%' || $%d || '%%'", spec.Column, n))
			args = append(args, p.Value)
		default:
			return "", nil, eris.Errorf("datastore: unsupported operator %q", p.Op)
		}
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// Select returns up to limit org numbers matching the filter, ordered by
// revenue descending so the most substantial candidates surface first.
func (s *PGStore) Select(ctx context.Context, f *filter.CompiledFilter, limit int) ([]string, error) {
	where, args, err := renderWhere(f)
	if err != nil {
		return nil, err
	}

	sql := "SELECT org_id FROM companies" + where +
		fmt.Sprintf(" ORDER BY revenue_ksek DESC NULLS LAST, org_id LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &model.QueryExecutionError{SQL: sql, Args: args, Err: err}
	}
	defer rows.Close()

	var orgIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &model.QueryExecutionError{SQL: sql, Args: args, Err: err}
		}
		orgIDs = append(orgIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.QueryExecutionError{SQL: sql, Args: args, Err: err}
	}
	return orgIDs, nil
}

// Count returns the unbounded match count for the filter.
func (s *PGStore) Count(ctx context.Context, f *filter.CompiledFilter) (int, error) {
	where, args, err := renderWhere(f)
	if err != nil {
		return 0, err
	}

	sql := "SELECT COUNT(*) FROM companies" + where

	var count int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, &model.QueryExecutionError{SQL: sql, Args: args, Err: err}
	}
	return count, nil
}

// Name returns the registered company name for an org id.
func (s *PGStore) Name(ctx context.Context, orgID string) (string, error) {
	sql := `SELECT name FROM companies WHERE org_id = $1`

	var name string
	if err := s.pool.QueryRow(ctx, sql, orgID).Scan(&name); err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", &model.QueryExecutionError{SQL: sql, Args: []any{orgID}, Err: err}
	}
	return name, nil
}

// FinancialContext assembles a compact text block of the latest financials
// for one company, fed to the profile synthesizer. Best effort: a miss or
// query error yields an empty string.
func (s *PGStore) FinancialContext(ctx context.Context, orgID string) (string, error) {
	sql := `SELECT name, revenue_ksek, profit_ksek, ebit_margin_pct, revenue_growth_pct, employees
		FROM companies WHERE org_id = $1`

	var (
		name            string
		revenue, profit int64
		margin, growth  float64
		employees       int
	)
	err := s.pool.QueryRow(ctx, sql, orgID).Scan(&name, &revenue, &profit, &margin, &growth, &employees)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", &model.QueryExecutionError{SQL: sql, Args: []any{orgID}, Err: err}
	}

	return fmt.Sprintf(
		"Company: %s (org %s)\nRevenue: %d KSEK\nProfit: %d KSEK\nEBIT margin: %.1f%%\nRevenue growth: %.1f%%\nEmployees: %d",
		name, orgID, revenue, profit, margin, growth, employees,
	), nil
}
