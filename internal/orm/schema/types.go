// Package schema provides the field declaration model for recordkit records.
// A RecordSchema is an ordered, immutable set of FieldSpecs built once per
// record type; declaration order drives serialization and column order.
package schema

import (
	"fmt"
)

// FieldKind is the closed set of field kinds a record can declare
type FieldKind int

const (
	// Scalar kinds
	KindInteger FieldKind = iota
	KindNumber
	KindBool
	KindText
	KindEmail
	KindUUID
	KindDatetime
	KindJSON
	KindPassword

	// Nested kinds
	KindRecord
	KindCollection
)

// String returns the string representation of the field kind
func (k FieldKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindEmail:
		return "email"
	case KindUUID:
		return "uuid"
	case KindDatetime:
		return "datetime"
	case KindJSON:
		return "json"
	case KindPassword:
		return "password"
	case KindRecord:
		return "record"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// ParseFieldKind converts a string to a FieldKind
func ParseFieldKind(s string) (FieldKind, error) {
	switch s {
	case "integer", "int":
		return KindInteger, nil
	case "number", "float":
		return KindNumber, nil
	case "bool", "boolean":
		return KindBool, nil
	case "text", "string":
		return KindText, nil
	case "email":
		return KindEmail, nil
	case "uuid":
		return KindUUID, nil
	case "datetime", "timestamp":
		return KindDatetime, nil
	case "json":
		return KindJSON, nil
	case "password":
		return KindPassword, nil
	case "record":
		return KindRecord, nil
	case "collection":
		return KindCollection, nil
	default:
		return 0, fmt.Errorf("unknown field kind: %s", s)
	}
}

// IsNested returns true for kinds that hold other records
func (k FieldKind) IsNested() bool {
	return k == KindRecord || k == KindCollection
}

// IsNumeric returns true for kinds with a range check
func (k FieldKind) IsNumeric() bool {
	return k == KindInteger || k == KindNumber
}

// Choice is one allowed value of an enumerated field
type Choice struct {
	Value interface{}
	Label string
}

// FieldSpec is the static declaration of one field. It is never mutated after
// the owning RecordSchema is built.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Label    string
	Required bool
	Nullable bool
	Hidden   bool
	Readonly bool
	Default  interface{}

	// Text constraints. MaxLength nil or 0 means unlimited.
	MinLength int
	MaxLength *int

	// Numeric constraints
	Minimum *float64
	Maximum *float64

	Choices []Choice

	// Presentation hints consumed by form collaborators
	Rows        int
	Cols        int
	Placeholder string
	Prefix      string
	Suffix      string

	// Nested kinds only. ForeignKey names the column of the target record the
	// link refers to (a has-many back reference for collections).
	ForeignKey string
	Record     *RecordSchema

	// Order is the declaration sequence number within the record
	Order int
}

// String returns a short description of the field
func (f *FieldSpec) String() string {
	if f.Kind.IsNested() && f.Record != nil {
		return fmt.Sprintf("%s %s<%s>", f.Name, f.Kind, f.Record.Name)
	}
	return fmt.Sprintf("%s %s", f.Name, f.Kind)
}

// HasChoices returns true if the field is restricted to an enumeration
func (f *FieldSpec) HasChoices() bool {
	return len(f.Choices) > 0
}

// Metadata is the read-only view of a field handed to form and template
// collaborators.
type Metadata struct {
	Name        string
	Kind        string
	Label       string
	Required    bool
	Readonly    bool
	Hidden      bool
	Choices     []Choice
	MaxLength   int
	Rows        int
	Cols        int
	Placeholder string
	Prefix      string
	Suffix      string
}

// Metadata returns the presentation metadata of the field
func (f *FieldSpec) Metadata() Metadata {
	md := Metadata{
		Name:        f.Name,
		Kind:        f.Kind.String(),
		Label:       f.Label,
		Required:    f.Required,
		Readonly:    f.Readonly,
		Hidden:      f.Hidden,
		Rows:        f.Rows,
		Cols:        f.Cols,
		Placeholder: f.Placeholder,
		Prefix:      f.Prefix,
		Suffix:      f.Suffix,
	}
	if f.MaxLength != nil {
		md.MaxLength = *f.MaxLength
	}
	if len(f.Choices) > 0 {
		md.Choices = append([]Choice(nil), f.Choices...)
	}
	return md
}

// RecordSchema is the ordered field table of one record type
type RecordSchema struct {
	Name       string
	Table      string
	PrimaryKey string

	fields []*FieldSpec
	index  map[string]int
}

// Fields returns the field specs in declaration order
func (r *RecordSchema) Fields() []*FieldSpec {
	out := make([]*FieldSpec, len(r.fields))
	copy(out, r.fields)
	return out
}

// Field returns the spec for name
func (r *RecordSchema) Field(name string) (*FieldSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i], true
}

// Has returns true if the record declares name
func (r *RecordSchema) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Names returns the field names in declaration order
func (r *RecordSchema) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Columns returns the names stored in the record's own row: scalars and
// foreign-key links, in declaration order.
func (r *RecordSchema) Columns() []string {
	cols := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		if f.Kind == KindCollection {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// PrimaryKeyField returns the spec of the primary key
func (r *RecordSchema) PrimaryKeyField() *FieldSpec {
	f, _ := r.Field(r.PrimaryKey)
	return f
}

// Len returns the number of declared fields
func (r *RecordSchema) Len() int {
	return len(r.fields)
}
