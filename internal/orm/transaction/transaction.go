// Package transaction wraps database/sql transactions for the SQL store. A
// Transaction is the unit of work behind port Commit and Rollback.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrTransactionDone is returned when a finished transaction is used again
	ErrTransactionDone = errors.New("transaction already finished")
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// ReadUncommitted allows dirty reads
	ReadUncommitted IsolationLevel = iota
	// ReadCommitted prevents dirty reads (PostgreSQL default)
	ReadCommitted
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "READ COMMITTED"
	}
}

// ParseIsolationLevel converts a configuration value to an IsolationLevel
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	switch s {
	case "", "read_committed", "READ COMMITTED":
		return ReadCommitted, nil
	case "read_uncommitted", "READ UNCOMMITTED":
		return ReadUncommitted, nil
	case "repeatable_read", "REPEATABLE READ":
		return RepeatableRead, nil
	case "serializable", "SERIALIZABLE":
		return Serializable, nil
	default:
		return ReadCommitted, fmt.Errorf("unknown isolation level: %s", s)
	}
}

// ToSQLOptions converts IsolationLevel to sql.TxOptions
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case ReadUncommitted:
		level = sql.LevelReadUncommitted
	case ReadCommitted:
		level = sql.LevelReadCommitted
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		level = sql.LevelReadCommitted
	}
	return &sql.TxOptions{Isolation: level}
}

// Transaction is one database transaction
type Transaction struct {
	tx             *sql.Tx
	committed      atomic.Bool
	rolledBack     atomic.Bool
	isolationLevel IsolationLevel
}

// Manager begins transactions on a database handle
type Manager struct {
	db    *sql.DB
	level IsolationLevel
}

// NewManager creates a new transaction manager using ReadCommitted
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db, level: ReadCommitted}
}

// WithIsolation returns a manager that begins transactions at level
func (m *Manager) WithIsolation(level IsolationLevel) *Manager {
	return &Manager{db: m.db, level: level}
}

// DB returns the underlying database handle
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Begin starts a new transaction with the manager's isolation level
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := m.db.BeginTx(ctx, m.level.ToSQLOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx, isolationLevel: m.level}, nil
}

// WithTransaction executes fn within a transaction.
// Commits on success and rolls back on error or panic.
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Tx returns the underlying sql.Tx
func (t *Transaction) Tx() *sql.Tx {
	return t.tx
}

// IsolationLevel returns the isolation level of the transaction
func (t *Transaction) IsolationLevel() IsolationLevel {
	return t.isolationLevel
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	if t.Done() {
		return ErrTransactionDone
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.committed.Store(true)
	return nil
}

// Rollback rolls back the transaction. Rolling back twice is a no-op.
func (t *Transaction) Rollback() error {
	if t.committed.Load() {
		return ErrTransactionDone
	}
	if t.rolledBack.Load() {
		return nil
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.rolledBack.Store(true)
	return nil
}

// ExecContext executes a statement that doesn't return rows
func (t *Transaction) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext executes a statement that returns rows
func (t *Transaction) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a statement that returns at most one row
func (t *Transaction) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// IsCommitted returns true if the transaction has been committed
func (t *Transaction) IsCommitted() bool {
	return t.committed.Load()
}

// IsRolledBack returns true if the transaction has been rolled back
func (t *Transaction) IsRolledBack() bool {
	return t.rolledBack.Load()
}

// Done returns true once the transaction was committed or rolled back
func (t *Transaction) Done() bool {
	return t.committed.Load() || t.rolledBack.Load()
}
