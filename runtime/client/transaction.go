// Package client provides transaction support.
package client

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel represents transaction isolation levels
type IsolationLevel int

const (
	// ReadUncommitted allows dirty reads
	ReadUncommitted IsolationLevel = iota
	// ReadCommitted prevents dirty reads
	ReadCommitted
	// RepeatableRead prevents dirty reads and non-repeatable reads
	RepeatableRead
	// Serializable prevents dirty reads, non-repeatable reads, and phantom reads
	Serializable
)

// ToSQLIsolationLevel converts IsolationLevel to sql.IsolationLevel
func (level IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch level {
	case ReadUncommitted:
		return sql.LevelReadUncommitted
	case ReadCommitted:
		return sql.LevelReadCommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// NewTxOptions creates sql.TxOptions from isolation level
func NewTxOptions(isolation IsolationLevel, readOnly bool) *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: isolation.ToSQLIsolationLevel(),
		ReadOnly:  readOnly,
	}
}

// CommitOption modifies Commit.
type CommitOption func(*commitOptions)

type commitOptions struct {
	noChangesOK bool
}

// NoChangesOK makes Commit a no-op instead of an error when no transaction is open.
func NoChangesOK() CommitOption {
	return func(o *commitOptions) {
		o.noChangesOK = true
	}
}

// begin opens the implicit transaction if none is open.
func (db *DB) begin(ctx context.Context) error {
	if db.tx != nil {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, db.txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	db.tx = tx
	db.logger.Debug("transaction started")
	return nil
}

// Commit commits the open transaction. Without an open transaction it
// returns ErrNoTransaction unless NoChangesOK is given.
func (db *DB) Commit(opts ...CommitOption) error {
	var o commitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if db.closed {
		return ErrClosed
	}
	if db.tx == nil {
		if o.noChangesOK {
			return nil
		}
		return ErrNoTransaction
	}

	db.closeCursors()
	tx := db.tx
	db.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	db.logger.Debug("transaction committed")
	return nil
}

// Rollback discards the open transaction. It is a no-op without one.
func (db *DB) Rollback() error {
	if db.tx == nil {
		return nil
	}

	db.closeCursors()
	tx := db.tx
	db.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	db.logger.Debug("transaction rolled back")
	return nil
}

// Transaction runs fn and commits what it changed. If fn returns an error
// or panics, the transaction is rolled back.
func (db *DB) Transaction(fn func(db *DB) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = db.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(db); err != nil {
		if rbErr := db.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	return db.Commit(NoChangesOK())
}
