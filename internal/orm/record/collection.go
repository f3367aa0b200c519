package record

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Collection is an ordered sequence of records of one schema sharing a store
type Collection struct {
	schema  *schema.RecordSchema
	opts    options
	port    port.Port
	logger  *zap.Logger
	records []*Record

	// set for nested collections: the owner and the element column holding its id
	parent     *Record
	foreignKey string
}

// NewCollection creates an empty collection of rs
func NewCollection(rs *schema.RecordSchema, opts ...Option) *Collection {
	return newCollection(rs, buildOptions(opts))
}

func newCollection(rs *schema.RecordSchema, o options) *Collection {
	o.id = nil
	c := &Collection{
		schema: rs,
		opts:   o,
		logger: o.logger,
	}
	if o.store != nil {
		c.port = o.store.Port(rs)
	}
	return c
}

// Schema returns the element record type
func (c *Collection) Schema() *schema.RecordSchema {
	return c.schema
}

func (c *Collection) element() *Record {
	r := newRecord(c.schema, c.opts)
	if c.parent != nil {
		r.linkColumn = c.foreignKey
	}
	return r
}

// ownerID returns the id of the owning record of a nested collection
func (c *Collection) ownerID() interface{} {
	if c.parent == nil || c.foreignKey == "" {
		return nil
	}
	return c.parent.ID()
}

// Append assigns values to a new record and adds it at the end. Elements of
// a nested collection get the owner id in their foreign-key column.
func (c *Collection) Append(ctx context.Context, values map[string]interface{}) (*Record, error) {
	if id := c.ownerID(); id != nil {
		stamped := make(map[string]interface{}, len(values)+1)
		for k, v := range values {
			stamped[k] = v
		}
		stamped[c.foreignKey] = id
		values = stamped
	}

	r := c.element()
	if err := r.Assign(ctx, values); err != nil {
		return nil, err
	}
	c.records = append(c.records, r)
	return r, nil
}

// RemoveAt deletes the element at i and removes it from the sequence
func (c *Collection) RemoveAt(ctx context.Context, i int) error {
	if i < 0 || i >= len(c.records) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(c.records))
	}
	if err := c.records[i].Delete(ctx); err != nil {
		return err
	}
	c.records = append(c.records[:i], c.records[i+1:]...)
	return nil
}

// Query replaces the elements with the rows matching q in store order. A
// nested collection only sees rows linked to its owner.
func (c *Collection) Query(ctx context.Context, q *port.Query) error {
	if c.port == nil {
		return nil
	}

	var query port.Query
	if q != nil {
		query = *q
	}
	if c.parent != nil && c.foreignKey != "" {
		id := c.parent.ID()
		if id == nil {
			c.records = nil
			return nil
		}
		filter := make(map[string]interface{}, len(query.Filter)+1)
		for k, v := range query.Filter {
			filter[k] = v
		}
		filter[c.foreignKey] = id
		query.Filter = filter
	}

	rows, err := c.port.Query(ctx, query)
	if err != nil {
		return err
	}
	c.logger.Debug("query",
		zap.String("table", c.schema.Table),
		zap.Int("rows", len(rows)),
	)

	c.records = make([]*Record, 0, len(rows))
	for _, row := range rows {
		r := c.element()
		r.hydrate(row)
		c.records = append(c.records, r)
	}
	return nil
}

// Len returns the number of elements
func (c *Collection) Len() int {
	return len(c.records)
}

// At returns the element at i
func (c *Collection) At(i int) (*Record, error) {
	if i < 0 || i >= len(c.records) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(c.records))
	}
	return c.records[i], nil
}

// Records returns the elements in sequence order
func (c *Collection) Records() []*Record {
	return append([]*Record(nil), c.records...)
}

// All iterates over the elements in sequence order
func (c *Collection) All() iter.Seq2[int, *Record] {
	return func(yield func(int, *Record) bool) {
		for i, r := range c.records {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Value returns the elements as plain maps
func (c *Collection) Value() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Value())
	}
	return out
}

// Commit ends the store's unit of work
func (c *Collection) Commit(ctx context.Context) error {
	if c.port == nil {
		return nil
	}
	return c.port.Commit(ctx)
}

// Rollback discards the store's unit of work
func (c *Collection) Rollback(ctx context.Context) error {
	if c.port == nil {
		return nil
	}
	return c.port.Rollback(ctx)
}
