package record

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Query refills the record from the store. A foreign-key child resolves its
// id through the link value held by the parent. With an id the row is
// selected by primary key; otherwise q is run and hydrates the record only
// when it matches exactly one row. No match leaves the record empty.
func (r *Record) Query(ctx context.Context, q *port.Query) error {
	if r.deleted {
		return ErrRecordDeleted
	}
	if r.port == nil {
		return nil
	}

	id := r.ID()
	if r.parent != nil && r.parentKeyValue != nil {
		resolved, err := r.resolveLink(ctx)
		if err != nil {
			return err
		}
		id = resolved
	}

	r.hydrating = true
	defer func() { r.hydrating = false }()

	var rows []port.Row
	switch {
	case id != nil:
		var err error
		rows, err = r.port.Select(ctx, id)
		if err != nil {
			return err
		}
		if len(rows) > 1 {
			return fmt.Errorf("%w: %s id %v matched %d rows", ErrMultipleRows, r.schema.Name, id, len(rows))
		}
	case q != nil:
		var err error
		rows, err = r.port.Query(ctx, *q)
		if err != nil {
			return err
		}
		if len(rows) > 1 {
			r.logger.Warn("query matched more than one row",
				zap.String("table", r.schema.Table),
				zap.Int("rows", len(rows)),
			)
			rows = nil
		}
	}

	r.clear()
	if len(rows) == 1 {
		r.hydrate(rows[0])
	}
	return nil
}

// resolveLink returns the primary key of the row the parent links to
func (r *Record) resolveLink(ctx context.Context) (interface{}, error) {
	if r.foreignKey == "" || r.foreignKey == r.schema.PrimaryKey {
		return r.parentKeyValue, nil
	}
	rows, err := r.port.Query(ctx, port.Query{
		Filter: map[string]interface{}{r.foreignKey: r.parentKeyValue},
	})
	if err != nil {
		return nil, err
	}
	row, err := port.One(rows)
	if err != nil {
		return nil, fmt.Errorf("%s.%s = %v: %w", r.schema.Name, r.foreignKey, r.parentKeyValue, err)
	}
	if row == nil {
		return nil, nil
	}
	return row[r.schema.PrimaryKey], nil
}

// Hydrate merges a stored row into the record without validation or store
// writes. Link columns set the child's link value; children are not loaded.
func (r *Record) Hydrate(row port.Row) error {
	if r.deleted {
		return ErrRecordDeleted
	}
	r.hydrating = true
	defer func() { r.hydrating = false }()
	r.hydrate(row)
	return nil
}

func (r *Record) hydrate(row port.Row) {
	synced := make(map[string]interface{}, len(row))
	for _, spec := range r.schema.Fields() {
		v, ok := row[spec.Name]
		if !ok {
			continue
		}
		switch spec.Kind {
		case schema.KindCollection:
			continue
		case schema.KindRecord:
			c := r.child(spec)
			c.detach()
			c.parentKeyValue = v
		default:
			f, ok := r.fields[spec.Name]
			if !ok {
				f = newField(spec, r.validator)
				r.fields[spec.Name] = f
			}
			f.value = v
		}
		synced[spec.Name] = v
	}
	r.tracker.Sync(synced)
}

// Load fetches the nested record or collection name from the store
func (r *Record) Load(ctx context.Context, name string) error {
	if r.deleted {
		return ErrRecordDeleted
	}
	spec, err := r.spec(name)
	if err != nil {
		return err
	}
	switch spec.Kind {
	case schema.KindRecord:
		return r.child(spec).Query(ctx, nil)
	case schema.KindCollection:
		return r.collection(spec).Query(ctx, nil)
	default:
		return fmt.Errorf("%w: %s.%s is a %s", ErrNotNested, r.schema.Name, name, spec.Kind)
	}
}

// Unset removes the value of name. A record with an id has the column set to
// NULL in the store.
func (r *Record) Unset(ctx context.Context, name string) error {
	if r.deleted {
		return ErrRecordDeleted
	}
	spec, err := r.spec(name)
	if err != nil {
		return err
	}
	if name == r.schema.PrimaryKey {
		return fmt.Errorf("%w: %s.%s cannot be unset", ErrPrimaryKeyRebind, r.schema.Name, name)
	}

	persisted := false
	if id := r.ID(); r.port != nil && id != nil && spec.Kind != schema.KindCollection {
		if err := r.port.Update(ctx, port.Row{name: nil}, id); err != nil {
			return err
		}
		r.logger.Debug("unset",
			zap.String("table", r.schema.Table),
			zap.Any("id", id),
			zap.String("field", name),
		)
		persisted = true
	}

	switch spec.Kind {
	case schema.KindRecord:
		if c, ok := r.children[name]; ok {
			c.detach()
			delete(r.children, name)
		}
	case schema.KindCollection:
		delete(r.collections, name)
	default:
		delete(r.fields, name)
	}

	if persisted {
		r.tracker.Sync(map[string]interface{}{name: nil})
	} else {
		r.tracker.Set(name, nil)
	}
	return nil
}

// Delete removes the record. A root record deletes its row. A foreign-key
// child only clears the link that ties it to its parent, either the parent's
// link column or, for elements of a nested collection, its own foreign key.
// Child rows are left to the store.
func (r *Record) Delete(ctx context.Context) error {
	if r.deleted {
		return ErrRecordDeleted
	}

	id := r.ID()
	switch {
	case r.parent != nil && r.parentKey != "":
		if r.parent.Has(r.parentKey) {
			if err := r.parent.Unset(ctx, r.parentKey); err != nil {
				return err
			}
		}
	case r.linkColumn != "":
		if r.port != nil && id != nil {
			if err := r.port.Update(ctx, port.Row{r.linkColumn: nil}, id); err != nil {
				return err
			}
			r.logger.Debug("detach",
				zap.String("table", r.schema.Table),
				zap.Any("id", id),
				zap.String("field", r.linkColumn),
			)
		}
	case r.port != nil && id != nil:
		if err := r.port.Delete(ctx, id); err != nil {
			return err
		}
		r.logger.Debug("delete",
			zap.String("table", r.schema.Table),
			zap.Any("id", id),
		)
	}

	r.clear()
	r.deleted = true
	return nil
}

// Commit ends the store's unit of work
func (r *Record) Commit(ctx context.Context) error {
	if r.port == nil {
		return nil
	}
	return r.port.Commit(ctx)
}

// Rollback discards the store's unit of work
func (r *Record) Rollback(ctx context.Context) error {
	if r.port == nil {
		return nil
	}
	return r.port.Rollback(ctx)
}
