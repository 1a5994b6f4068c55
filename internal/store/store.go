// Package store implements Postgres persistence for snapshot runs, frozen
// snapshot data, metric results and the audit trail. Repositories are
// transaction-aware: when the context carries a transaction every statement
// runs inside it, otherwise statements go straight to the pool.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisetech/rras/pkg/database"
)

var (
	// ErrRunNotFound is returned when a snapshot run id does not exist.
	ErrRunNotFound = errors.New("snapshot run not found")
	// ErrStaleStatus is returned when a status transition loses a race: the
	// row's current status no longer matches the expected one.
	ErrStaleStatus = errors.New("snapshot run status changed concurrently")
	// ErrMetricNotFound is returned when a (snapshot, code) lookup misses.
	ErrMetricNotFound = errors.New("regulatory metric not found")
)

// Querier is the statement surface shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

type txKey struct{}

// TxManager starts transactions and threads them through the context so the
// repositories pick them up transparently.
type TxManager struct {
	db *database.DB
}

// NewTxManager creates a transaction manager over the shared pool.
func NewTxManager(db *database.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Nested calls reuse the outer
// transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// base resolves the querier for a context: the ambient transaction when one
// is present, the pool otherwise.
type base struct {
	db *database.DB
}

func (b base) querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return b.db.Pool
}
