// Package tx carries a SQL transaction through context so stores compose into
// one atomic commit without knowing who opened the transaction.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside an atomic unit. Implementations wrap a
// database transaction or, in memory, a keyed lock. The key scopes contention:
// callers pass the identity of the row they are about to mutate so unrelated
// writes do not serialize against each other.
type Runner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// SQLRunner runs the callback inside a database transaction. Stores called
// with the derived context pick up the transaction via From and join the same
// commit.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner constructs a transaction runner over a live database handle.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunInTx begins a transaction, stashes it in the context, and commits when
// fn returns nil. Any error rolls back; the rollback error is secondary and
// discarded in favor of the callback's error. The key is unused here: row
// locks taken by the stores inside the transaction provide the scoping.
func (r *SQLRunner) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, dbTx)); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
