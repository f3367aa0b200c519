// Package memstore is an in-memory transactional store. Writes go to a
// working copy that Commit publishes and Rollback discards.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

type table struct {
	order []string
	rows  map[string]port.Row
	seq   int64
}

func newTable() *table {
	return &table{rows: make(map[string]port.Row)}
}

func (t *table) clone() *table {
	c := &table{
		order: append([]string(nil), t.order...),
		rows:  make(map[string]port.Row, len(t.rows)),
		seq:   t.seq,
	}
	for k, r := range t.rows {
		c.rows[k] = r.Copy()
	}
	return c
}

// Store holds every table of one in-memory database
type Store struct {
	mu        sync.Mutex
	committed map[string]*table
	working   map[string]*table
	logger    *zap.Logger
}

// New creates an empty store
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		committed: make(map[string]*table),
		working:   make(map[string]*table),
		logger:    logger,
	}
}

// Port returns the port for rs
func (s *Store) Port(rs *schema.RecordSchema) port.Port {
	return &Port{store: s, schema: rs}
}

// Seed inserts committed rows of rs directly, bypassing the unit of work
func (s *Store) Seed(rs *schema.RecordSchema, rows ...port.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tb := range []*table{s.table(s.committed, rs.Table), s.table(s.working, rs.Table)} {
		for _, r := range rows {
			tb.put(port.Clean(rs, r), rs.PrimaryKey)
		}
	}
}

// Rows returns the committed rows of table in insertion order
func (s *Store) Rows(table string) []port.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	tb, ok := s.committed[table]
	if !ok {
		return nil
	}
	out := make([]port.Row, 0, len(tb.order))
	for _, k := range tb.order {
		out = append(out, tb.rows[k].Copy())
	}
	return out
}

func (s *Store) table(set map[string]*table, name string) *table {
	tb, ok := set[name]
	if !ok {
		tb = newTable()
		set[name] = tb
	}
	return tb
}

func (t *table) put(r port.Row, pk string) string {
	id, ok := r[pk]
	if !ok || id == nil {
		t.seq++
		id = t.seq
		r[pk] = id
	} else if n, ok := id.(int64); ok && n > t.seq {
		t.seq = n
	}
	key := port.Key(id)
	if _, exists := t.rows[key]; !exists {
		t.order = append(t.order, key)
	}
	t.rows[key] = r
	return key
}

func (t *table) remove(key string) {
	if _, ok := t.rows[key]; !ok {
		return
	}
	delete(t.rows, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (s *Store) commit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = make(map[string]*table, len(s.working))
	for name, tb := range s.working {
		s.committed[name] = tb.clone()
	}
}

func (s *Store) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.working = make(map[string]*table, len(s.committed))
	for name, tb := range s.committed {
		s.working[name] = tb.clone()
	}
}

// Port is the per record type view of a Store
type Port struct {
	store  *Store
	schema *schema.RecordSchema
}

// Select returns the row with primary key id
func (p *Port) Select(ctx context.Context, id interface{}) ([]port.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	tb := p.store.table(p.store.working, p.schema.Table)
	r, ok := tb.rows[port.Key(id)]
	if !ok {
		return nil, nil
	}
	return []port.Row{port.Clean(p.schema, r)}, nil
}

// Query returns the rows matching the filter of q in insertion order
func (p *Port) Query(ctx context.Context, q port.Query) ([]port.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.IsRaw() {
		return nil, fmt.Errorf("%w: memstore cannot run SQL", port.ErrUnsupportedQuery)
	}
	if err := q.Check(p.schema); err != nil {
		return nil, err
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	tb := p.store.table(p.store.working, p.schema.Table)
	var out []port.Row
	for _, k := range tb.order {
		r := tb.rows[k]
		if port.Match(r, q.Filter) {
			out = append(out, port.Clean(p.schema, r))
		}
	}
	port.SortRows(out, q.OrderBy)
	return out, nil
}

// Insert stores row, assigning the next sequence value when it carries no
// primary key
func (p *Port) Insert(ctx context.Context, row port.Row) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	tb := p.store.table(p.store.working, p.schema.Table)
	r := row.Copy()
	if id, ok := r[p.schema.PrimaryKey]; ok && id != nil {
		if _, exists := tb.rows[port.Key(id)]; exists {
			return nil, fmt.Errorf("insert into %s: duplicate primary key %v", p.schema.Table, id)
		}
	}
	tb.put(r, p.schema.PrimaryKey)

	id := r[p.schema.PrimaryKey]
	p.store.logger.Debug("insert",
		zap.String("table", p.schema.Table),
		zap.Any("id", id),
	)
	return id, nil
}

// Update merges row into the row identified by id
func (p *Port) Update(ctx context.Context, row port.Row, id interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	tb := p.store.table(p.store.working, p.schema.Table)
	existing, ok := tb.rows[port.Key(id)]
	if !ok {
		return nil
	}
	for k, v := range row {
		existing[k] = v
	}
	p.store.logger.Debug("update",
		zap.String("table", p.schema.Table),
		zap.Any("id", id),
	)
	return nil
}

// Delete removes the row identified by id
func (p *Port) Delete(ctx context.Context, id interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	p.store.table(p.store.working, p.schema.Table).remove(port.Key(id))
	p.store.logger.Debug("delete",
		zap.String("table", p.schema.Table),
		zap.Any("id", id),
	)
	return nil
}

// Commit publishes the working copy of every table
func (p *Port) Commit(ctx context.Context) error {
	p.store.commit()
	return nil
}

// Rollback discards uncommitted writes of every table
func (p *Port) Rollback(ctx context.Context) error {
	p.store.rollback()
	return nil
}
