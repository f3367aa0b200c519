package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrValidation matches every field validation failure via errors.Is
var ErrValidation = errors.New("validation failed")

// FieldError is the single validation error kind. It names the field, its
// user-facing label, what went wrong and the offending value.
type FieldError struct {
	Field       string
	Label       string
	Description string
	Value       interface{}

	// Limit is the constraint that was violated, if any (max length, minimum...)
	Limit interface{}
}

// NewFieldError creates a new FieldError
func NewFieldError(field, label, description string, value interface{}) *FieldError {
	return &FieldError{
		Field:       field,
		Label:       label,
		Description: description,
		Value:       value,
	}
}

// Error implements the error interface
func (fe *FieldError) Error() string {
	label := fe.Label
	if label == "" {
		label = fe.Field
	}
	if fe.Limit != nil {
		return fmt.Sprintf("%s: %s (%v)", label, fe.Description, fe.Limit)
	}
	return fmt.Sprintf("%s: %s", label, fe.Description)
}

// Is reports whether target is ErrValidation
func (fe *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// Errors contains multiple validation errors for a record
type Errors struct {
	Fields map[string][]string `json:"fields"`
}

// NewErrors creates a new Errors instance
func NewErrors() *Errors {
	return &Errors{
		Fields: make(map[string][]string),
	}
}

// Add adds a validation error for a specific field
func (ve *Errors) Add(field, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[field] = append(ve.Fields[field], message)
}

// AddFieldError adds a FieldError to the validation errors
func (ve *Errors) AddFieldError(err *FieldError) {
	ve.Add(err.Field, err.Description)
}

// HasErrors returns true if there are any validation errors
func (ve *Errors) HasErrors() bool {
	return len(ve.Fields) > 0
}

// Count returns the total number of validation errors across all fields
func (ve *Errors) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface
func (ve *Errors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}

	fields := make([]string, 0, len(ve.Fields))
	for field := range ve.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var messages []string
	for _, field := range fields {
		for _, msg := range ve.Fields[field] {
			messages = append(messages, fmt.Sprintf("  - %s: %s", field, msg))
		}
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}

	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// Is reports whether target is ErrValidation
func (ve *Errors) Is(target error) bool {
	return target == ErrValidation
}

// ErrorOrNil returns ve as an error when it holds errors, nil otherwise
func (ve *Errors) ErrorOrNil() error {
	if ve == nil || !ve.HasErrors() {
		return nil
	}
	return ve
}

// MarshalJSON implements json.Marshaler for custom JSON serialization
func (ve *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: ve.Fields,
	})
}

// IsValidation returns true if err is a field validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// AsFieldError extracts the FieldError from err
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
