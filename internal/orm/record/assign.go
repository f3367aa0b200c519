package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/tracking"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

// staged is one scalar value applied by Assign, kept so a failed store write
// can restore the previous state
type staged struct {
	field   *Field
	value   interface{}
	prev    interface{}
	existed bool
}

// stagedLink is a child slot as it was before Assign touched it
type stagedLink struct {
	name    string
	child   *Record
	existed bool
	state   slotState
}

// slotState is the in-memory state of a child record
type slotState struct {
	fields      map[string]*Field
	values      map[string]interface{}
	children    map[string]*Record
	collections map[string]*Collection
	tracker     *tracking.Tracker
	link        interface{}
}

func (r *Record) stageLink(name string) stagedLink {
	l := stagedLink{name: name}
	l.child, l.existed = r.children[name]
	if l.existed {
		l.state = l.child.save()
	}
	return l
}

// restore puts the slot back into r and forgets the link change
func (l stagedLink) restore(r *Record) {
	if !l.existed {
		delete(r.children, l.name)
	} else {
		r.children[l.name] = l.child
		l.child.load(l.state)
	}
	r.tracker.Set(l.name, l.state.link)
}

func (r *Record) save() slotState {
	s := slotState{
		fields:      make(map[string]*Field, len(r.fields)),
		values:      make(map[string]interface{}, len(r.fields)),
		children:    make(map[string]*Record, len(r.children)),
		collections: make(map[string]*Collection, len(r.collections)),
		tracker:     r.tracker.Clone(),
		link:        r.parentKeyValue,
	}
	for name, f := range r.fields {
		s.fields[name] = f
		s.values[name] = f.value
	}
	for name, c := range r.children {
		s.children[name] = c
	}
	for name, c := range r.collections {
		s.collections[name] = c
	}
	return s
}

func (r *Record) load(s slotState) {
	r.fields = s.fields
	for name, f := range s.fields {
		f.value = s.values[name]
	}
	r.children = s.children
	r.collections = s.collections
	r.tracker = s.tracker
	r.parentKeyValue = s.link
}

// Set assigns a single field. See Assign.
func (r *Record) Set(ctx context.Context, name string, value interface{}) error {
	return r.Assign(ctx, map[string]interface{}{name: value})
}

// Assign validates every value, applies them and, when a store is bound,
// writes the fields touched by this call: an update when the primary key
// names an existing row, an insert otherwise. A validation error leaves the
// record untouched; a store error restores the values and child links the
// call staged. Rows already written for children stay in the store.
func (r *Record) Assign(ctx context.Context, values map[string]interface{}) error {
	if r.deleted {
		return ErrRecordDeleted
	}
	for name := range values {
		if _, err := r.spec(name); err != nil {
			return err
		}
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}

	pk := r.schema.PrimaryKey
	var (
		scalars     []staged
		records     []*schema.FieldSpec
		collections []*schema.FieldSpec
	)
	for _, spec := range r.schema.Fields() {
		v, ok := values[spec.Name]
		if !ok {
			continue
		}
		switch spec.Kind {
		case schema.KindRecord:
			if isList(v) {
				return fmt.Errorf("%w: %s.%s", ErrNotAnObject, r.schema.Name, spec.Name)
			}
			records = append(records, spec)
			continue
		case schema.KindCollection:
			if _, err := asList(v); err != nil {
				return fmt.Errorf("%w: %s.%s", err, r.schema.Name, spec.Name)
			}
			collections = append(collections, spec)
			continue
		}

		coerced, err := r.validator.Validate(spec, v)
		if err != nil {
			return err
		}
		if spec.Name == pk {
			if cur := r.ID(); cur != nil {
				if !port.Equal(cur, coerced) {
					return fmt.Errorf("%w: %s %v to %v", ErrPrimaryKeyRebind, r.schema.Name, cur, coerced)
				}
				continue
			}
		}
		f, ok := r.fields[spec.Name]
		if !ok {
			f = newField(spec, r.validator)
		}
		scalars = append(scalars, staged{field: f, value: coerced})
	}

	diff := tracking.NewDiff()
	var links []stagedLink
	unlink := func() {
		for i := len(links) - 1; i >= 0; i-- {
			links[i].restore(r)
		}
	}
	for _, spec := range records {
		links = append(links, r.stageLink(spec.Name))
		link, changed, err := r.assignChild(ctx, spec, values[spec.Name])
		if err != nil {
			unlink()
			return err
		}
		if changed {
			diff.Set(spec.Name, link)
			r.tracker.Set(spec.Name, link)
		}
	}

	undo := r.apply(scalars, diff)
	if err := r.reconcile(ctx, diff); err != nil {
		undo()
		unlink()
		return err
	}
	if err := r.propagate(ctx); err != nil {
		return err
	}

	for _, spec := range collections {
		if err := r.assignCollection(ctx, spec, values[spec.Name]); err != nil {
			return err
		}
	}
	return nil
}

// ensureLoaded fetches a foreign-key child that so far only knows its link
// value, so that assignments update the linked row instead of inserting
func (r *Record) ensureLoaded(ctx context.Context) error {
	if r.port == nil || r.parent == nil || r.parentKeyValue == nil || r.Loaded() {
		return nil
	}
	return r.Query(ctx, nil)
}

func (r *Record) apply(scalars []staged, diff *tracking.Diff) func() {
	for i := range scalars {
		s := &scalars[i]
		name := s.field.Name()
		if cur, ok := r.fields[name]; ok {
			s.existed = true
			s.prev = cur.value
		} else {
			r.fields[name] = s.field
		}
		s.field.value = s.value
		r.tracker.Set(name, s.value)
		diff.Set(name, s.value)
	}

	return func() {
		for i := len(scalars) - 1; i >= 0; i-- {
			s := scalars[i]
			name := s.field.Name()
			if s.existed {
				s.field.value = s.prev
			} else {
				delete(r.fields, name)
			}
			r.tracker.Set(name, s.prev)
		}
	}
}

// assignChild assigns v to the child slot of spec and returns the link value
// the parent row should hold
func (r *Record) assignChild(ctx context.Context, spec *schema.FieldSpec, v interface{}) (interface{}, bool, error) {
	child := r.child(spec)

	if v == nil {
		had := child.parentKeyValue != nil || child.Loaded()
		child.detach()
		return nil, had, nil
	}

	if m, ok := asObject(v); ok {
		prev := child.parentKeyValue
		r.inAssign = true
		err := child.Assign(ctx, m)
		r.inAssign = false
		if err != nil {
			return nil, false, err
		}
		link := child.stored(child.foreignKey)
		if link == nil {
			return nil, false, nil
		}
		changed := !port.Equal(link, prev)
		child.parentKeyValue = link
		return link, changed, nil
	}

	link, err := r.linkValue(spec, v)
	if err != nil {
		return nil, false, err
	}
	child.detach()
	child.parentKeyValue = link
	if err := child.Query(ctx, nil); err != nil {
		return nil, false, err
	}
	return link, true, nil
}

// linkValue validates a scalar link against the child's foreign-key column
func (r *Record) linkValue(spec *schema.FieldSpec, v interface{}) (interface{}, error) {
	target, ok := spec.Record.Field(spec.ForeignKey)
	if !ok {
		return v, nil
	}
	link, err := r.validator.Validate(target, v)
	if err != nil {
		if fe, ok := validation.AsFieldError(err); ok {
			return nil, validation.NewFieldError(spec.Name, spec.Label, fe.Description, v)
		}
		return nil, err
	}
	return link, nil
}

func (r *Record) assignCollection(ctx context.Context, spec *schema.FieldSpec, v interface{}) error {
	items, err := asList(v)
	if err != nil {
		return err
	}
	c := r.collection(spec)
	c.records = nil
	for _, item := range items {
		if _, err := c.Append(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// reconcile writes diff to the store
func (r *Record) reconcile(ctx context.Context, diff *tracking.Diff) error {
	if r.port == nil || diff.Empty() {
		return nil
	}
	pk := r.schema.PrimaryKey

	if id := r.ID(); id != nil {
		rows, err := r.port.Select(ctx, id)
		if err != nil {
			return err
		}
		if len(rows) > 1 {
			return fmt.Errorf("%w: %s id %v matched %d rows", ErrMultipleRows, r.schema.Name, id, len(rows))
		}
		if len(rows) == 1 {
			row := port.Row(diff.Map())
			delete(row, pk)
			if len(row) == 0 {
				return nil
			}
			if err := r.port.Update(ctx, row, id); err != nil {
				return err
			}
			r.logger.Debug("update",
				zap.String("table", r.schema.Table),
				zap.Any("id", id),
				zap.Strings("fields", diff.Keys()),
			)
			r.tracker.Sync(row)
			return nil
		}
	}

	row := port.Row(diff.Map())
	if id := r.ID(); id != nil {
		row[pk] = id
	} else if r.schema.PrimaryKeyField().Kind == schema.KindUUID {
		row[pk] = uuid.NewString()
	}

	id, err := r.port.Insert(ctx, row)
	if err != nil {
		return err
	}
	if id == nil {
		id = row[pk]
	}
	pkSpec := r.schema.PrimaryKeyField()
	f, ok := r.fields[pk]
	if !ok {
		f = newField(pkSpec, r.validator)
		r.fields[pk] = f
	}
	f.value = port.Normalize(pkSpec, id)
	row[pk] = f.value

	r.logger.Debug("insert",
		zap.String("table", r.schema.Table),
		zap.Any("id", f.value),
		zap.Strings("fields", diff.Keys()),
	)
	r.tracker.Sync(row)
	return nil
}

// propagate pushes a changed foreign-key value of a child into its parent
func (r *Record) propagate(ctx context.Context) error {
	if r.parent == nil || r.foreignKey == "" {
		return nil
	}
	link := r.stored(r.foreignKey)
	if link == nil || port.Equal(link, r.parentKeyValue) {
		return nil
	}
	r.parentKeyValue = link
	if r.parent.inAssign {
		return nil
	}
	return r.parent.relink(ctx, r.parentKey, link)
}

// relink stores a new link value for the child slot name
func (r *Record) relink(ctx context.Context, name string, link interface{}) error {
	diff := tracking.NewDiff()
	diff.Set(name, link)
	r.tracker.Set(name, link)
	if err := r.reconcile(ctx, diff); err != nil {
		return err
	}
	return r.propagate(ctx)
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case port.Row:
		return m, true
	}
	return nil, false
}

func isList(v interface{}) bool {
	switch v.(type) {
	case []interface{}, []map[string]interface{}:
		return true
	}
	return false
}

func asList(v interface{}) ([]map[string]interface{}, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []map[string]interface{}:
		return l, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(l))
		for _, item := range l {
			m, ok := asObject(item)
			if !ok {
				return nil, ErrNotAnObject
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, ErrNotAnArray
}
