// Package port defines the narrow persistence contract the record engine
// calls: select by id or query, insert returning a generated identifier,
// update, delete, commit and rollback. Store implementations live in the
// memstore, sqlstore and redisstore subpackages.
package port

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

var (
	// ErrMultipleRows is returned when a lookup expected to be unique yields
	// more than one row
	ErrMultipleRows = errors.New("multiple rows returned")

	// ErrUnsupportedQuery is returned by stores that cannot run a query form
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrUnknownColumn is returned for filter or order columns the record
	// type does not store
	ErrUnknownColumn = errors.New("unknown column")
)

// Row maps column names to values
type Row map[string]interface{}

// Copy returns a shallow copy of the row
func (r Row) Copy() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Query selects rows either by equality Filter or by a raw SQL statement.
// OrderBy entries name columns; a leading "-" sorts descending.
type Query struct {
	Filter  map[string]interface{}
	SQL     string
	Args    []interface{}
	OrderBy []string
}

// IsRaw reports whether the query carries raw SQL
func (q Query) IsRaw() bool {
	return strings.TrimSpace(q.SQL) != ""
}

// Check verifies that every filter and order column is a stored column of rs
func (q Query) Check(rs *schema.RecordSchema) error {
	cols := make(map[string]bool)
	for _, c := range rs.Columns() {
		cols[c] = true
	}
	for k := range q.Filter {
		if !cols[k] {
			return fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, rs.Name, k)
		}
	}
	for _, o := range q.OrderBy {
		if c := strings.TrimPrefix(o, "-"); !cols[c] {
			return fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, rs.Name, c)
		}
	}
	return nil
}

// FilterKeys returns the filter columns in sorted order
func (q Query) FilterKeys() []string {
	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Port is the store contract bound to one record type
type Port interface {
	// Select returns the rows whose primary key equals id
	Select(ctx context.Context, id interface{}) ([]Row, error)
	// Query returns the rows matching q in store order
	Query(ctx context.Context, q Query) ([]Row, error)
	// Insert stores row and returns its primary key
	Insert(ctx context.Context, row Row) (interface{}, error)
	// Update writes the columns of row to the row identified by id
	Update(ctx context.Context, row Row, id interface{}) error
	// Delete removes the row identified by id
	Delete(ctx context.Context, id interface{}) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store hands out ports per record type. Ports of one store share a unit of
// work, so Commit or Rollback on any of them ends it for all.
type Store interface {
	Port(rs *schema.RecordSchema) Port
}

// One enforces single-row cardinality. Zero rows yield a nil row.
func One(rows []Row) (Row, error) {
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrMultipleRows, len(rows))
	}
}

// IsMultipleRows returns true if err is a cardinality error
func IsMultipleRows(err error) bool {
	return errors.Is(err, ErrMultipleRows)
}
