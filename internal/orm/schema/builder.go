package schema

import (
	"fmt"
	"strings"
)

// DefaultPrimaryKey is the primary key column used when none is declared
const DefaultPrimaryKey = "id"

// Option configures a field declaration
type Option func(*FieldSpec)

// Required marks the field as required
func Required() Option { return func(f *FieldSpec) { f.Required = true } }

// Nullable marks the field as nullable
func Nullable() Option { return func(f *FieldSpec) { f.Nullable = true } }

// Hidden excludes the field from serialized output
func Hidden() Option { return func(f *FieldSpec) { f.Hidden = true } }

// Readonly marks the field as read-only for form collaborators
func Readonly() Option { return func(f *FieldSpec) { f.Readonly = true } }

// Label sets the user-facing label
func Label(label string) Option { return func(f *FieldSpec) { f.Label = label } }

// MinLength sets the minimum text length
func MinLength(n int) Option { return func(f *FieldSpec) { f.MinLength = n } }

// MaxLength sets the maximum text length
func MaxLength(n int) Option {
	return func(f *FieldSpec) {
		f.MaxLength = &n
	}
}

// Min sets the minimum numeric value
func Min(v float64) Option {
	return func(f *FieldSpec) {
		f.Minimum = &v
	}
}

// Max sets the maximum numeric value
func Max(v float64) Option {
	return func(f *FieldSpec) {
		f.Maximum = &v
	}
}

// Choices restricts the field to the given values
func Choices(choices ...Choice) Option {
	return func(f *FieldSpec) {
		f.Choices = append([]Choice(nil), choices...)
	}
}

// Rows sets the number of rows for multi-line text
func Rows(n int) Option { return func(f *FieldSpec) { f.Rows = n } }

// Cols sets the number of columns for multi-line text
func Cols(n int) Option { return func(f *FieldSpec) { f.Cols = n } }

// Placeholder sets the form placeholder
func Placeholder(s string) Option { return func(f *FieldSpec) { f.Placeholder = s } }

// Prefix sets the form prefix decoration
func Prefix(s string) Option { return func(f *FieldSpec) { f.Prefix = s } }

// Suffix sets the form suffix decoration
func Suffix(s string) Option { return func(f *FieldSpec) { f.Suffix = s } }

// Default sets the default value
func Default(v interface{}) Option { return func(f *FieldSpec) { f.Default = v } }

// ForeignKey sets the column of the nested record the link refers to
func ForeignKey(column string) Option { return func(f *FieldSpec) { f.ForeignKey = column } }

// Builder declares the fields of one record type. Declaration order is the
// order of the builder calls.
type Builder struct {
	name       string
	table      string
	primaryKey string
	fields     []*FieldSpec
	errors     []error
}

// NewBuilder creates a new schema builder for the named record type
func NewBuilder(name string) *Builder {
	return &Builder{
		name:       name,
		table:      name,
		primaryKey: DefaultPrimaryKey,
		fields:     make([]*FieldSpec, 0),
		errors:     make([]error, 0),
	}
}

// Table sets the backing table name
func (b *Builder) Table(table string) *Builder {
	b.table = table
	return b
}

// PrimaryKey sets the primary key column
func (b *Builder) PrimaryKey(name string) *Builder {
	b.primaryKey = name
	return b
}

// Integer declares an integer field
func (b *Builder) Integer(name string, opts ...Option) *Builder {
	return b.Field(name, KindInteger, opts...)
}

// Number declares a numeric field
func (b *Builder) Number(name string, opts ...Option) *Builder {
	return b.Field(name, KindNumber, opts...)
}

// Bool declares a boolean field
func (b *Builder) Bool(name string, opts ...Option) *Builder {
	return b.Field(name, KindBool, opts...)
}

// Text declares a text field
func (b *Builder) Text(name string, opts ...Option) *Builder {
	return b.Field(name, KindText, opts...)
}

// Email declares an email field
func (b *Builder) Email(name string, opts ...Option) *Builder {
	return b.Field(name, KindEmail, opts...)
}

// UUID declares a UUID field
func (b *Builder) UUID(name string, opts ...Option) *Builder {
	return b.Field(name, KindUUID, opts...)
}

// Datetime declares a datetime field
func (b *Builder) Datetime(name string, opts ...Option) *Builder {
	return b.Field(name, KindDatetime, opts...)
}

// JSON declares an opaque JSON field
func (b *Builder) JSON(name string, opts ...Option) *Builder {
	return b.Field(name, KindJSON, opts...)
}

// Password declares a write-only password field
func (b *Builder) Password(name string, opts ...Option) *Builder {
	return b.Field(name, KindPassword, opts...)
}

// Record declares a nested record reached through a link column
func (b *Builder) Record(name string, target *RecordSchema, opts ...Option) *Builder {
	b.Field(name, KindRecord, opts...)
	b.bindTarget(name, target)
	return b
}

// Collection declares a nested collection of target records
func (b *Builder) Collection(name string, target *RecordSchema, opts ...Option) *Builder {
	b.Field(name, KindCollection, opts...)
	b.bindTarget(name, target)
	return b
}

func (b *Builder) bindTarget(name string, target *RecordSchema) {
	if len(b.fields) == 0 {
		return
	}
	last := b.fields[len(b.fields)-1]
	if last.Name == name {
		last.Record = target
	}
}

// Field declares a field of an arbitrary kind
func (b *Builder) Field(name string, kind FieldKind, opts ...Option) *Builder {
	if name == "" {
		b.errors = append(b.errors, fmt.Errorf("field name must not be empty"))
		return b
	}
	for _, existing := range b.fields {
		if existing.Name == name {
			b.errors = append(b.errors, fmt.Errorf("field %s is declared more than once", name))
			return b
		}
	}

	spec := &FieldSpec{
		Name:  name,
		Kind:  kind,
		Label: name,
		Rows:  1,
		Order: len(b.fields),
	}
	for _, opt := range opts {
		opt(spec)
	}
	b.fields = append(b.fields, spec)
	return b
}

// Build validates the declarations and returns the immutable schema. The
// builder itself is not modified, so Build may be called again.
func (b *Builder) Build() (*RecordSchema, error) {
	errs := append([]error(nil), b.errors...)
	fields := make([]*FieldSpec, 0, len(b.fields)+1)
	for _, f := range b.fields {
		cp := *f
		if err := checkField(&cp); err != nil {
			errs = append(errs, err)
		}
		fields = append(fields, &cp)
	}

	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return nil, fmt.Errorf("schema %s failed with %d errors:\n%s",
			b.name, len(errs), strings.Join(errMsgs, "\n"))
	}

	hasPrimary := false
	for _, f := range fields {
		if f.Name == b.primaryKey {
			if f.Kind.IsNested() {
				return nil, fmt.Errorf("schema %s: primary key %s cannot be a nested field", b.name, f.Name)
			}
			hasPrimary = true
		}
	}
	if !hasPrimary {
		fields = append(fields, &FieldSpec{
			Name:   b.primaryKey,
			Kind:   KindInteger,
			Label:  b.primaryKey,
			Hidden: true,
			Rows:   1,
			Order:  len(fields),
		})
	}

	rs := &RecordSchema{
		Name:       b.name,
		Table:      b.table,
		PrimaryKey: b.primaryKey,
		fields:     fields,
		index:      make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		rs.index[f.Name] = i
	}
	return rs, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *RecordSchema {
	rs, err := b.Build()
	if err != nil {
		panic(err)
	}
	return rs
}

func checkField(f *FieldSpec) error {
	switch f.Kind {
	case KindRecord, KindCollection:
		if f.Record == nil {
			return fmt.Errorf("field %s: %s field requires a target record", f.Name, f.Kind)
		}
		if f.Kind == KindRecord && f.ForeignKey == "" {
			f.ForeignKey = f.Record.PrimaryKey
		}
		if f.ForeignKey != "" && !f.Record.Has(f.ForeignKey) {
			return fmt.Errorf("field %s: foreign key %s is not declared on %s", f.Name, f.ForeignKey, f.Record.Name)
		}
	case KindInteger, KindNumber, KindBool, KindText, KindEmail, KindUUID,
		KindDatetime, KindJSON, KindPassword:
		if f.ForeignKey != "" {
			return fmt.Errorf("field %s: foreign key requires a record or collection field", f.Name)
		}
	default:
		return fmt.Errorf("field %s: unknown field kind %d", f.Name, f.Kind)
	}

	if f.MinLength < 0 {
		return fmt.Errorf("field %s: min length must not be negative", f.Name)
	}
	if f.MaxLength != nil && *f.MaxLength > 0 && *f.MaxLength < f.MinLength {
		return fmt.Errorf("field %s: max length %d is below min length %d", f.Name, *f.MaxLength, f.MinLength)
	}
	if f.Minimum != nil && f.Maximum != nil && *f.Maximum < *f.Minimum {
		return fmt.Errorf("field %s: maximum %v is below minimum %v", f.Name, *f.Maximum, *f.Minimum)
	}
	return nil
}
