package tracking

// Diff is the ordered set of field values changed by one assignment. Keys keep
// the order in which they were first set so store writes follow declaration
// order when callers set fields in that order.
type Diff struct {
	keys   []string
	values map[string]interface{}
}

// NewDiff creates an empty diff
func NewDiff() *Diff {
	return &Diff{values: make(map[string]interface{})}
}

// Set records value for field, keeping the position of an earlier entry
func (d *Diff) Set(field string, value interface{}) {
	if d.values == nil {
		d.values = make(map[string]interface{})
	}
	if _, ok := d.values[field]; !ok {
		d.keys = append(d.keys, field)
	}
	d.values[field] = value
}

// Get returns the value recorded for field
func (d *Diff) Get(field string) (interface{}, bool) {
	v, ok := d.values[field]
	return v, ok
}

// Has reports whether field is part of the diff
func (d *Diff) Has(field string) bool {
	_, ok := d.values[field]
	return ok
}

// Remove drops field from the diff
func (d *Diff) Remove(field string) {
	if _, ok := d.values[field]; !ok {
		return
	}
	delete(d.values, field)
	for i, k := range d.keys {
		if k == field {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the changed fields in insertion order
func (d *Diff) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of changed fields
func (d *Diff) Len() int {
	return len(d.keys)
}

// Empty reports whether nothing changed
func (d *Diff) Empty() bool {
	return len(d.keys) == 0
}

// Map returns a copy of the diff as a plain map
func (d *Diff) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}
