// Package tracking records which fields of a record changed since it was last
// synchronized with its store. Tracker drives Record.Changed and Diff carries
// the per-assignment column set written by reconciliation.
package tracking

import (
	"reflect"
	"sync"
)

// FieldChange represents a change to a single field
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// Tracker tracks field changes against the last synchronized state
type Tracker struct {
	mu       sync.RWMutex
	original map[string]interface{}
	changes  map[string]*FieldChange
	order    []string
}

// NewTracker creates a tracker whose synchronized state is original
func NewTracker(original map[string]interface{}) *Tracker {
	return &Tracker{
		original: deepCopyMap(original),
		changes:  make(map[string]*FieldChange),
	}
}

// deepCopyMap creates a deep copy of a map
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return make(map[string]interface{})
	}
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

// deepCopyValue copies slices and maps so later mutation of the caller's
// value does not leak into the snapshot
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	case map[string]interface{}:
		return deepCopyMap(val)
	default:
		return v
	}
}

func deepEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Set records the new value of field. A value equal to the synchronized one
// clears the change.
func (t *Tracker) Set(field string, value interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, had := t.original[field]
	if had && deepEqual(old, value) {
		t.forget(field)
		return
	}
	if !had && value == nil {
		t.forget(field)
		return
	}

	if _, ok := t.changes[field]; !ok {
		t.order = append(t.order, field)
	}
	t.changes[field] = &FieldChange{
		Field:    field,
		OldValue: old,
		NewValue: deepCopyValue(value),
	}
}

func (t *Tracker) forget(field string) {
	if _, ok := t.changes[field]; !ok {
		return
	}
	delete(t.changes, field)
	for i, f := range t.order {
		if f == field {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Changed returns true if the specified field has changed
func (t *Tracker) Changed(field string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.changes[field]
	return ok
}

// ChangedFields returns the changed fields in the order they first changed
func (t *Tracker) ChangedFields() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fields := make([]string, len(t.order))
	copy(fields, t.order)
	return fields
}

// PreviousValue returns the synchronized value of a field
func (t *Tracker) PreviousValue(field string) interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.original[field]
}

// Change returns the FieldChange for a specific field, or nil if unchanged
func (t *Tracker) Change(field string) *FieldChange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changes[field]
}

// HasChanges returns true if any fields have changed
func (t *Tracker) HasChanges() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.changes) > 0
}

// ChangedTo returns true if the field changed to the specified value
func (t *Tracker) ChangedTo(field string, value interface{}) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	change, ok := t.changes[field]
	return ok && deepEqual(change.NewValue, value)
}

// ChangedFrom returns true if the field changed from the specified value
func (t *Tracker) ChangedFrom(field string, value interface{}) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	change, ok := t.changes[field]
	return ok && deepEqual(change.OldValue, value)
}

// Sync marks the given fields as synchronized with the store
func (t *Tracker) Sync(values map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for field, v := range values {
		t.original[field] = deepCopyValue(v)
		t.forget(field)
	}
}

// Reset replaces the synchronized state and drops every tracked change.
// Hydration from the store calls it.
func (t *Tracker) Reset(original map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.original = deepCopyMap(original)
	t.changes = make(map[string]*FieldChange)
	t.order = nil
}

// Clone returns an independent copy of the tracker
func (t *Tracker) Clone() *Tracker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := &Tracker{
		original: deepCopyMap(t.original),
		changes:  make(map[string]*FieldChange, len(t.changes)),
		order:    append([]string(nil), t.order...),
	}
	for field, change := range t.changes {
		cp := *change
		c.changes[field] = &cp
	}
	return c
}

// ChangedData returns the changed fields with their new values
func (t *Tracker) ChangedData() *Diff {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d := NewDiff()
	for _, field := range t.order {
		d.Set(field, t.changes[field].NewValue)
	}
	return d
}
