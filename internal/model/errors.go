package model

import (
	"errors"
	"fmt"
)

// ErrNotFound signals an expected miss: no cached address, no stored profile,
// or an external search that returned nothing. Per-company, never batch-fatal.
var ErrNotFound = errors.New("not found")

// ModelError indicates the generation or embedding service was unavailable or
// returned an unusable response. Callers recover via fallback paths.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error during %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// QueryExecutionError surfaces a data-store failure together with the
// attempted statement so the caller can diagnose the compiled expression.
// Never swallowed: an executed-but-wrong query is worse than a visible failure.
type QueryExecutionError struct {
	SQL  string
	Args []any
	Err  error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v (sql: %s)", e.Err, e.SQL)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// PersistenceError indicates every configured profile sink rejected a write.
type PersistenceError struct {
	OrgID string
	Errs  []error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting profile %s failed on all sinks: %v", e.OrgID, errors.Join(e.Errs...))
}

func (e *PersistenceError) Unwrap() error { return errors.Join(e.Errs...) }

// SynthesisError aborts a single company's profile synthesis, carrying the
// index of the stage that failed.
type SynthesisError struct {
	OrgID string
	Stage int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis stage %d failed for %s: %v", e.Stage, e.OrgID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
