package record

import (
	"errors"

	"github.com/conduit-lang/recordkit/internal/orm/port"
)

var (
	// ErrUnknownField is returned when a name is not declared on the record
	ErrUnknownField = errors.New("unknown field")

	// ErrNestedField is returned by Get for record and collection fields
	ErrNestedField = errors.New("field holds nested records")

	// ErrNotNested is returned by Child, Collection and Load for scalar fields
	ErrNotNested = errors.New("field is not nested")

	// ErrPrimaryKeyRebind is returned when a bound primary key would change
	ErrPrimaryKeyRebind = errors.New("cannot rebind primary key")

	// ErrNotAnObject is returned when a record value is not a mapping
	ErrNotAnObject = errors.New("expected an object")

	// ErrNotAnArray is returned when a collection value is not a list
	ErrNotAnArray = errors.New("expected an array")

	// ErrRecordDeleted is returned by every operation on a deleted record
	ErrRecordDeleted = errors.New("record has been deleted")

	// ErrIndexOutOfRange is returned for collection positions past the end
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMultipleRows is the cardinality error of the persistence port
	ErrMultipleRows = port.ErrMultipleRows
)

// IsUnknownField returns true if err is an unknown field error
func IsUnknownField(err error) bool {
	return errors.Is(err, ErrUnknownField)
}

// IsDeleted returns true if err reports use of a deleted record
func IsDeleted(err error) bool {
	return errors.Is(err, ErrRecordDeleted)
}
