package schema

import (
	"fmt"
	"sync"
)

// Registry holds the record schemas of an application. Each record type is
// registered once and never changes afterwards.
type Registry struct {
	schemas map[string]*RecordSchema
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*RecordSchema),
	}
}

// Register registers a record schema
func (r *Registry) Register(rs *RecordSchema) error {
	if rs == nil {
		return fmt.Errorf("cannot register nil schema")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[rs.Name]; exists {
		return fmt.Errorf("record %s is already registered", rs.Name)
	}
	r.schemas[rs.Name] = rs
	r.order = append(r.order, rs.Name)
	return nil
}

// Get retrieves a record schema by name
func (r *Registry) Get(name string) (*RecordSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, exists := r.schemas[name]
	return rs, exists
}

// MustGet retrieves a record schema by name and panics if it is missing
func (r *Registry) MustGet(name string) *RecordSchema {
	rs, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("record %s is not registered", name))
	}
	return rs
}

// List returns the record names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}

// Exists checks if a record schema exists
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.schemas[name]
	return exists
}

// Clear removes all registered schemas (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas = make(map[string]*RecordSchema)
	r.order = nil
}
