package db

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel represents the transaction isolation level.
type IsolationLevel int

const (
	// ReadCommitted prevents dirty reads (PostgreSQL default).
	ReadCommitted IsolationLevel = iota
	// RepeatableRead prevents non-repeatable reads.
	RepeatableRead
	// Serializable provides full isolation.
	Serializable
)

// ToSQLOptions converts IsolationLevel to sql.TxOptions.
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		level = sql.LevelReadCommitted
	}
	return &sql.TxOptions{Isolation: level}
}

// TxManager runs functions inside database transactions. Multi-write
// operations (message insert + notification fan-out, webhook apply)
// go through here so they commit or roll back as a unit.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a transaction manager over the given pool.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTransaction executes fn within a transaction at the default
// isolation level. It commits on success and rolls back on error or
// panic; panics are re-thrown after rollback.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return m.WithTransactionIsolation(ctx, ReadCommitted, fn)
}

// WithTransactionIsolation is WithTransaction at an explicit isolation
// level.
func (m *TxManager) WithTransactionIsolation(ctx context.Context, level IsolationLevel, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, level.ToSQLOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
