package record

import (
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

// Field pairs a scalar FieldSpec with the current value of one record
type Field struct {
	spec      *schema.FieldSpec
	value     interface{}
	validator *validation.Validator
}

func newField(spec *schema.FieldSpec, v *validation.Validator) *Field {
	return &Field{spec: spec, validator: v}
}

// Name returns the field name
func (f *Field) Name() string {
	return f.spec.Name
}

// Spec returns the field declaration
func (f *Field) Spec() *schema.FieldSpec {
	return f.spec
}

// Metadata returns the presentation metadata of the field
func (f *Field) Metadata() schema.Metadata {
	return f.spec.Metadata()
}

// Value returns the current value. Password fields always return nil.
func (f *Field) Value() interface{} {
	if f.spec.Kind == schema.KindPassword {
		return nil
	}
	return f.value
}

// IsZero reports whether the field holds no value
func (f *Field) IsZero() bool {
	return f.value == nil
}

// Validate checks v without changing the field
func (f *Field) Validate(v interface{}) (interface{}, error) {
	return f.validator.Validate(f.spec, v)
}

// Set validates v and stores the coerced value. On failure the previous value
// is kept. Set only changes the in-memory value; use Record.Set to reconcile
// with the store.
func (f *Field) Set(v interface{}) error {
	coerced, err := f.Validate(v)
	if err != nil {
		return err
	}
	f.value = coerced
	return nil
}

func (f *Field) stored() interface{} {
	return f.value
}
