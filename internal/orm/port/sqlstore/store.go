// Package sqlstore implements the persistence port on database/sql. One
// transaction is begun lazily on the first statement and ended by Commit or
// Rollback; a transaction found in the context is joined instead.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/transaction"
)

// querier is satisfied by *transaction.Transaction
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for statement tracing
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIsolation sets the isolation level of the transactions the store begins
func WithIsolation(level transaction.IsolationLevel) Option {
	return func(s *Store) {
		s.txManager = s.txManager.WithIsolation(level)
	}
}

// Store is a database/sql backed port.Store
type Store struct {
	txManager *transaction.Manager
	dialect   Dialect
	logger    *zap.Logger

	mu sync.Mutex
	tx *transaction.Transaction
}

// New creates a store on db
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		txManager: transaction.NewManager(db),
		dialect:   dialect,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a database with a registered driver and picks its dialect
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return New(db, dialect, opts...), nil
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.txManager.DB()
}

// Dialect returns the store's SQL dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close rolls back an open transaction and closes the database
func (s *Store) Close() error {
	_ = s.rollback()
	return s.DB().Close()
}

// Port returns the port for rs
func (s *Store) Port(rs *schema.RecordSchema) port.Port {
	return &Port{
		store:   s,
		schema:  rs,
		builder: builder{dialect: s.dialect, schema: rs},
	}
}

// conn returns the transaction statements run in, beginning one if needed
func (s *Store) conn(ctx context.Context) (querier, error) {
	if tx, ok := transaction.FromContext(ctx); ok && !tx.Done() {
		return tx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil || s.tx.Done() {
		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return nil, err
		}
		s.tx = tx
	}
	return s.tx, nil
}

func (s *Store) commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

func (s *Store) rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}

func (s *Store) trace(op string, rs *schema.RecordSchema, st statement) {
	s.logger.Debug(op,
		zap.String("table", rs.Table),
		zap.String("sql", st.sql),
		zap.Int("args", len(st.args)),
	)
}

// Port is the per record type view of a Store
type Port struct {
	store   *Store
	schema  *schema.RecordSchema
	builder builder
}

// Select returns the rows whose primary key equals id
func (p *Port) Select(ctx context.Context, id interface{}) ([]port.Row, error) {
	return p.fetch(ctx, "select", p.builder.selectByID(id))
}

// Query returns the rows matching q in database order
func (p *Port) Query(ctx context.Context, q port.Query) ([]port.Row, error) {
	st, err := p.builder.query(q)
	if err != nil {
		return nil, err
	}
	return p.fetch(ctx, "query", st)
}

func (p *Port) fetch(ctx context.Context, op string, st statement) ([]port.Row, error) {
	conn, err := p.store.conn(ctx)
	if err != nil {
		return nil, err
	}
	p.store.trace(op, p.schema, st)

	rows, err := conn.QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, p.schema.Table, ConvertError(err))
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, p.schema.Table, err)
	}
	for i, r := range result {
		result[i] = port.Clean(p.schema, r)
	}
	return result, nil
}

// Insert stores row and returns its primary key. A key present in row is
// returned as is; otherwise the database generates one.
func (p *Port) Insert(ctx context.Context, row port.Row) (interface{}, error) {
	conn, err := p.store.conn(ctx)
	if err != nil {
		return nil, err
	}
	st := p.builder.insert(row)
	p.store.trace("insert", p.schema, st)

	pk := p.schema.PrimaryKey
	if p.store.dialect.Returning() {
		var id interface{}
		if err := conn.QueryRowContext(ctx, st.sql, st.args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert %s: %w", p.schema.Table, ConvertError(err))
		}
		return port.Normalize(p.schema.PrimaryKeyField(), id), nil
	}

	res, err := conn.ExecContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", p.schema.Table, ConvertError(err))
	}
	if id, ok := row[pk]; ok && id != nil {
		return id, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", p.schema.Table, err)
	}
	return id, nil
}

// Update writes the declared columns of row to the row identified by id
func (p *Port) Update(ctx context.Context, row port.Row, id interface{}) error {
	if len(p.builder.columns(row)) == 0 {
		return nil
	}
	return p.exec(ctx, "update", p.builder.update(row, id))
}

// Delete removes the row identified by id
func (p *Port) Delete(ctx context.Context, id interface{}) error {
	return p.exec(ctx, "delete", p.builder.remove(id))
}

func (p *Port) exec(ctx context.Context, op string, st statement) error {
	conn, err := p.store.conn(ctx)
	if err != nil {
		return err
	}
	p.store.trace(op, p.schema, st)

	if _, err := conn.ExecContext(ctx, st.sql, st.args...); err != nil {
		return fmt.Errorf("%s %s: %w", op, p.schema.Table, ConvertError(err))
	}
	return nil
}

// Commit commits the store's open transaction, if any
func (p *Port) Commit(ctx context.Context) error {
	return p.store.commit()
}

// Rollback rolls back the store's open transaction, if any
func (p *Port) Rollback(ctx context.Context) error {
	return p.store.rollback()
}

// scanRows scans every row into a column map
func scanRows(rows *sql.Rows) ([]port.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []port.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(port.Row, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
