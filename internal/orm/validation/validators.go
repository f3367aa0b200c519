// Package validation implements the per-kind validate/coerce rules applied to
// values assigned to record fields.
package validation

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/conduit-lang/recordkit/internal/auth"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Pre-compiled regex patterns for validators
var (
	emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+`)
)

// uuidLength is the length of the canonical textual UUID form
const uuidLength = 36

// DatetimeLayouts are the string forms accepted by datetime fields, tried in order
var DatetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// HashFunc turns a plain text password into its stored form
type HashFunc func(password string) (string, error)

// Validator validates and coerces field values. It holds no per-value state.
type Validator struct {
	hash HashFunc
}

// New creates a Validator that hashes passwords with hash
func New(hash HashFunc) *Validator {
	if hash == nil {
		hash = auth.HashPassword
	}
	return &Validator{hash: hash}
}

var defaultValidator = New(auth.HashPassword)

// Default returns the package level validator
func Default() *Validator {
	return defaultValidator
}

// Validate checks value against spec using the default validator
func Validate(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	return defaultValidator.Validate(spec, value)
}

// Validate checks value against spec and returns the coerced value to store.
// It never mutates spec or value.
func (v *Validator) Validate(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	coerced, err := v.coerce(spec, value)
	if err != nil {
		return nil, err
	}
	if coerced != nil && spec.HasChoices() && spec.Kind != schema.KindPassword {
		if !v.isChoice(spec, coerced) {
			return nil, NewFieldError(spec.Name, spec.Label, "invalid choice", value)
		}
	}
	return coerced, nil
}

func (v *Validator) coerce(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	switch spec.Kind {
	case schema.KindBool:
		return validateBool(spec, value)
	case schema.KindJSON:
		return validateJSON(spec, value)
	}

	if value == nil {
		return nil, nil
	}

	switch spec.Kind {
	case schema.KindInteger:
		return validateInteger(spec, value)
	case schema.KindNumber:
		return validateNumber(spec, value)
	case schema.KindText:
		return validateText(spec, value)
	case schema.KindEmail:
		return validateEmail(spec, value)
	case schema.KindUUID:
		return validateUUID(spec, value)
	case schema.KindDatetime:
		return validateDatetime(spec, value)
	case schema.KindPassword:
		return v.validatePassword(spec, value)
	case schema.KindRecord, schema.KindCollection:
		return nil, NewFieldError(spec.Name, spec.Label, "nested field has no scalar value", value)
	default:
		return nil, NewFieldError(spec.Name, spec.Label, "unknown field kind", value)
	}
}

func (v *Validator) isChoice(spec *schema.FieldSpec, value interface{}) bool {
	for _, choice := range spec.Choices {
		c, err := v.coerce(spec, choice.Value)
		if err != nil {
			continue
		}
		if reflect.DeepEqual(c, value) {
			return true
		}
	}
	return false
}

func validateInteger(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	n, ok := toInt64(value)
	if !ok {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid integer value", value)
	}
	if err := checkRange(spec, float64(n), value); err != nil {
		return nil, err
	}
	return n, nil
}

func validateNumber(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	n, ok := toFloat64(value)
	if !ok || math.IsNaN(n) {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid number value", value)
	}
	if err := checkRange(spec, n, value); err != nil {
		return nil, err
	}
	return n, nil
}

func checkRange(spec *schema.FieldSpec, n float64, value interface{}) error {
	if spec.Maximum != nil && n > *spec.Maximum {
		fe := NewFieldError(spec.Name, spec.Label, "exceeded maximum value", value)
		fe.Limit = *spec.Maximum
		return fe
	}
	if spec.Minimum != nil && n < *spec.Minimum {
		fe := NewFieldError(spec.Name, spec.Label, "less than minimum value", value)
		fe.Limit = *spec.Minimum
		return fe
	}
	return nil
}

// validateBool accepts bool and the numbers 0 and 1; nil becomes false
func validateBool(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	switch b := value.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	n, ok := toFloat64(value)
	if !ok {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid boolean value", value)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, NewFieldError(spec.Name, spec.Label, "invalid boolean value", value)
	}
}

func validateText(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid string value", value)
	}
	if err := checkLength(spec, s, value); err != nil {
		return nil, err
	}
	return s, nil
}

func checkLength(spec *schema.FieldSpec, s string, value interface{}) error {
	n := utf8.RuneCountInString(s)
	if spec.MaxLength != nil && *spec.MaxLength != 0 && n > *spec.MaxLength {
		fe := NewFieldError(spec.Name, spec.Label, "exceeded maximum length", value)
		fe.Limit = *spec.MaxLength
		return fe
	}
	if n < spec.MinLength {
		fe := NewFieldError(spec.Name, spec.Label, "less than required length", value)
		fe.Limit = spec.MinLength
		return fe
	}
	return nil
}

func validateEmail(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid string value", value)
	}
	if !emailPattern.MatchString(s) {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid email value", value)
	}
	return s, nil
}

func validateUUID(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok || len(s) != uuidLength {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid uuid value", value)
	}
	return s, nil
}

func validateDatetime(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	switch t := value.(type) {
	case time.Time:
		return CanonicalTime(t), nil
	case *time.Time:
		if t != nil {
			return CanonicalTime(*t), nil
		}
	case string:
		if parsed, ok := ParseDatetime(t); ok {
			return CanonicalTime(parsed), nil
		}
	}
	return nil, NewFieldError(spec.Name, spec.Label, "invalid datetime value", value)
}

// CanonicalTime returns t in UTC at second precision, the form datetime
// fields hold and serialize without loss
func CanonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ParseDatetime parses s with the first matching layout of DatetimeLayouts
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DatetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// validateJSON serializes any value to its JSON text
func validateJSON(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid json value", value)
	}
	return string(data), nil
}

// validatePassword hashes plain text passwords after the length and
// complexity checks. Values that already are hashes are kept as they are.
// The offending value is never attached to the error.
func (v *Validator) validatePassword(spec *schema.FieldSpec, value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, NewFieldError(spec.Name, spec.Label, "invalid string value", nil)
	}
	if auth.LooksHashed(s) {
		return s, nil
	}
	if err := checkLength(spec, s, nil); err != nil {
		return nil, err
	}
	if missing := passwordMissing(s); missing != "" {
		return nil, NewFieldError(spec.Name, spec.Label, missing, nil)
	}
	hashed, err := v.hash(s)
	if err != nil {
		return nil, NewFieldError(spec.Name, spec.Label, err.Error(), nil)
	}
	return hashed, nil
}

// passwordMissing lists the character classes s lacks
func passwordMissing(s string) string {
	var digits, lower, upper int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= 'a' && r <= 'z':
			lower++
		}
	}

	var missing []string
	if digits < 1 {
		missing = append(missing, "1 numbers")
	}
	if lower < 1 {
		missing = append(missing, "1 lower case characters")
	}
	if upper < 1 {
		missing = append(missing, "1 upper case characters")
	}
	return strings.Join(missing, ", ")
}

// AsInt64 converts Go integers, whole floats and integral json.Number values
func AsInt64(value interface{}) (int64, bool) {
	return toInt64(value)
}

// AsFloat64 converts Go numeric values and json.Number values
func AsFloat64(value interface{}) (float64, bool) {
	return toFloat64(value)
}

// Helper functions for type conversion

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return wholeFloat(float64(v))
	case float64:
		return wholeFloat(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
