package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTx is returned by Lock when called outside RunInTx.
var ErrNoTx = errors.New("postgres: no transaction in context")

const advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

// TxManager manages database transactions using the context pattern.
// Nested RunInTx calls are NOT supported: calling RunInTx inside a RunInTx
// callback will create a second independent transaction, which is a bug.
type TxManager struct {
	db Beginner
}

// NewTxManager creates a new TxManager.
func NewTxManager(db Beginner) *TxManager {
	return &TxManager{db: db}
}

// RunInTx executes fn within a database transaction.
// Isolation level: Read Committed (PostgreSQL default).
// On success: commits.
// On error from fn: rolls back and returns the error.
// On panic from fn: rolls back and re-panics.
// Rollback ignores ctx cancellation so an expired request still releases
// the transaction and its advisory locks.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return MapError(err, "begin transaction")
	}

	rbCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(rbCtx)
			panic(r)
		}
	}()

	txCtx := withTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(rbCtx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(err, "commit transaction")
	}

	return nil
}

// Lock takes a transaction-scoped advisory lock on key, blocking until it is
// granted. The lock is released when the surrounding transaction ends, so
// Lock must be called from inside a RunInTx callback.
func (m *TxManager) Lock(ctx context.Context, key string) error {
	tx, ok := txFromCtx(ctx)
	if !ok {
		return fmt.Errorf("lock %s: %w", key, ErrNoTx)
	}

	if _, err := tx.Exec(ctx, advisoryLockSQL, key); err != nil {
		return MapError(err, "lock "+key)
	}
	return nil
}
