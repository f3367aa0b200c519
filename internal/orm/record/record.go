// Package record implements composite records and collections: typed field
// values for one row of a RecordSchema, reconciled with a persistence port
// by insert or update on every validated mutation.
package record

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/tracking"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

// State is the lifecycle stage of a record
type State int

const (
	// StateUnbound records have no primary key yet
	StateUnbound State = iota
	// StateHydrating records are being filled from the store
	StateHydrating
	// StateBound records carry a primary key
	StateBound
	// StateDeleted records reject every further operation
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateHydrating:
		return "hydrating"
	case StateBound:
		return "bound"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Record is one row of a RecordSchema. Fields are instantiated lazily when
// first read or written.
type Record struct {
	schema    *schema.RecordSchema
	opts      options
	port      port.Port
	logger    *zap.Logger
	validator *validation.Validator

	fields      map[string]*Field
	children    map[string]*Record
	collections map[string]*Collection
	tracker     *tracking.Tracker

	// set when this record is the foreign-key child of another
	parent         *Record
	parentKey      string
	foreignKey     string
	parentKeyValue interface{}

	// set on elements of a nested collection: the column holding the owner id
	linkColumn string

	inAssign  bool
	hydrating bool
	deleted   bool
}

// New creates a record of rs
func New(rs *schema.RecordSchema, opts ...Option) *Record {
	o := buildOptions(opts)
	r := newRecord(rs, o)
	if o.id != nil {
		pk := rs.PrimaryKeyField()
		f := newField(pk, r.validator)
		f.value = port.Normalize(pk, o.id)
		r.fields[pk.Name] = f
		r.tracker.Sync(map[string]interface{}{pk.Name: f.value})
	}
	return r
}

func newRecord(rs *schema.RecordSchema, o options) *Record {
	o.id = nil
	r := &Record{
		schema:    rs,
		opts:      o,
		logger:    o.logger,
		validator: o.validator,
		tracker:   tracking.NewTracker(nil),
	}
	if o.store != nil {
		r.port = o.store.Port(rs)
	}
	r.clear()
	return r
}

func (r *Record) clear() {
	r.fields = make(map[string]*Field)
	r.children = make(map[string]*Record)
	r.collections = make(map[string]*Collection)
	r.tracker.Reset(nil)
}

// detach empties a child record and drops its link to the parent row
func (r *Record) detach() {
	r.clear()
	r.parentKeyValue = nil
}

// Schema returns the record type
func (r *Record) Schema() *schema.RecordSchema {
	return r.schema
}

// State returns the lifecycle stage of the record
func (r *Record) State() State {
	switch {
	case r.deleted:
		return StateDeleted
	case r.hydrating:
		return StateHydrating
	case r.ID() != nil:
		return StateBound
	default:
		return StateUnbound
	}
}

// ID returns the primary key value, or nil when the record is unbound
func (r *Record) ID() interface{} {
	if f, ok := r.fields[r.schema.PrimaryKey]; ok {
		return f.value
	}
	return nil
}

func (r *Record) spec(name string) (*schema.FieldSpec, error) {
	spec, ok := r.schema.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, r.schema.Name, name)
	}
	return spec, nil
}

// Get returns the scalar field name, instantiating it when absent. Boolean
// fields start out false.
func (r *Record) Get(name string) (*Field, error) {
	if r.deleted {
		return nil, ErrRecordDeleted
	}
	spec, err := r.spec(name)
	if err != nil {
		return nil, err
	}
	if spec.Kind.IsNested() {
		return nil, fmt.Errorf("%w: %s.%s is a %s, use Child or Collection",
			ErrNestedField, r.schema.Name, name, spec.Kind)
	}
	f, ok := r.fields[name]
	if !ok {
		f = newField(spec, r.validator)
		if spec.Kind == schema.KindBool {
			f.value = false
		}
		r.fields[name] = f
	}
	return f, nil
}

// Child returns the nested record slot of a record field. The slot is empty
// until assigned, hydrated with a link and loaded, or queried.
func (r *Record) Child(name string) (*Record, error) {
	if r.deleted {
		return nil, ErrRecordDeleted
	}
	spec, err := r.spec(name)
	if err != nil {
		return nil, err
	}
	if spec.Kind != schema.KindRecord {
		return nil, fmt.Errorf("%w: %s.%s is a %s", ErrNotNested, r.schema.Name, name, spec.Kind)
	}
	return r.child(spec), nil
}

func (r *Record) child(spec *schema.FieldSpec) *Record {
	if c, ok := r.children[spec.Name]; ok {
		return c
	}
	c := newRecord(spec.Record, r.opts)
	c.parent = r
	c.parentKey = spec.Name
	c.foreignKey = spec.ForeignKey
	r.children[spec.Name] = c
	return c
}

// Collection returns the nested collection of a collection field
func (r *Record) Collection(name string) (*Collection, error) {
	if r.deleted {
		return nil, ErrRecordDeleted
	}
	spec, err := r.spec(name)
	if err != nil {
		return nil, err
	}
	if spec.Kind != schema.KindCollection {
		return nil, fmt.Errorf("%w: %s.%s is a %s", ErrNotNested, r.schema.Name, name, spec.Kind)
	}
	return r.collection(spec), nil
}

func (r *Record) collection(spec *schema.FieldSpec) *Collection {
	if c, ok := r.collections[spec.Name]; ok {
		return c
	}
	c := newCollection(spec.Record, r.opts)
	c.parent = r
	c.foreignKey = spec.ForeignKey
	r.collections[spec.Name] = c
	return c
}

// Loaded reports whether the record holds any field values
func (r *Record) Loaded() bool {
	return len(r.fields) > 0
}

// Link returns the stored link value of a record field, whether or not the
// child has been loaded
func (r *Record) Link(name string) interface{} {
	if c, ok := r.children[name]; ok {
		return c.parentKeyValue
	}
	return nil
}

// Has reports whether the record holds a value for name
func (r *Record) Has(name string) bool {
	spec, ok := r.schema.Field(name)
	if !ok {
		return false
	}
	switch spec.Kind {
	case schema.KindRecord:
		c, ok := r.children[name]
		return ok && (c.parentKeyValue != nil || c.Loaded())
	case schema.KindCollection:
		_, ok := r.collections[name]
		return ok
	default:
		_, ok := r.fields[name]
		return ok
	}
}

// Keys returns the names holding values in declaration order
func (r *Record) Keys() []string {
	var keys []string
	for _, spec := range r.schema.Fields() {
		if r.Has(spec.Name) {
			keys = append(keys, spec.Name)
		}
	}
	return keys
}

// Value returns the record as a plain map. Password fields are omitted,
// loaded children become maps and unloaded ones their link value.
func (r *Record) Value() map[string]interface{} {
	out := make(map[string]interface{})
	for _, spec := range r.schema.Fields() {
		switch spec.Kind {
		case schema.KindPassword:
			continue
		case schema.KindRecord:
			c, ok := r.children[spec.Name]
			if !ok {
				continue
			}
			if c.Loaded() {
				out[spec.Name] = c.Value()
			} else if c.parentKeyValue != nil {
				out[spec.Name] = c.parentKeyValue
			}
		case schema.KindCollection:
			if c, ok := r.collections[spec.Name]; ok {
				out[spec.Name] = c.Value()
			}
		default:
			if f, ok := r.fields[spec.Name]; ok {
				out[spec.Name] = f.value
			}
		}
	}
	return out
}

// stored returns the value written to the store for a scalar or link column
func (r *Record) stored(name string) interface{} {
	if f, ok := r.fields[name]; ok {
		return f.stored()
	}
	if c, ok := r.children[name]; ok {
		return c.parentKeyValue
	}
	return nil
}

// Changed reports whether name was modified since the last store sync
func (r *Record) Changed(name string) bool {
	return r.tracker.Changed(name)
}

// ChangedFields returns the fields modified since the last store sync
func (r *Record) ChangedFields() []string {
	return r.tracker.ChangedFields()
}

// Check reports every required field without a value. Loaded children are
// checked too, their fields named parent.child.
func (r *Record) Check() error {
	errs := validation.NewErrors()
	r.check("", errs)
	return errs.ErrorOrNil()
}

func (r *Record) check(prefix string, errs *validation.Errors) {
	for _, spec := range r.schema.Fields() {
		name := prefix + spec.Name
		switch spec.Kind {
		case schema.KindBool:
			continue
		case schema.KindRecord:
			c, ok := r.children[spec.Name]
			if ok && c.Loaded() {
				c.check(name+".", errs)
			}
			if spec.Required && !r.Has(spec.Name) {
				errs.AddFieldError(validation.NewFieldError(name, spec.Label, "required", nil))
			}
		case schema.KindCollection:
			c, ok := r.collections[spec.Name]
			if spec.Required && (!ok || c.Len() == 0) {
				errs.AddFieldError(validation.NewFieldError(name, spec.Label, "required", nil))
			}
		default:
			if !spec.Required {
				continue
			}
			if f, ok := r.fields[spec.Name]; !ok || f.value == nil {
				errs.AddFieldError(validation.NewFieldError(name, spec.Label, "required", nil))
			}
		}
	}
}
