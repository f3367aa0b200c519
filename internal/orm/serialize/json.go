// Package serialize converts records and collections to and from JSON. Keys
// follow declaration order; hidden and password fields are never written.
package serialize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-lang/recordkit/internal/orm/record"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// DatetimeLayout is the format datetime fields are written in
const DatetimeLayout = "2006/01/02 15:04:05"

// ErrUnsupportedType is returned for values that are neither a record nor a
// collection
var ErrUnsupportedType = errors.New("unsupported type")

// ToJSON encodes a *record.Record as an object or a *record.Collection as an
// array of objects
func ToJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch t := v.(type) {
	case *record.Record:
		err = writeRecord(&buf, t)
	case *record.Collection:
		err = writeCollection(&buf, t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, r *record.Record) error {
	buf.WriteByte('{')
	first := true
	for _, spec := range r.Schema().Fields() {
		if spec.Hidden || spec.Kind == schema.KindPassword || !r.Has(spec.Name) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(spec.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')

		if err := writeField(buf, r, spec); err != nil {
			return fmt.Errorf("%s.%s: %w", r.Schema().Name, spec.Name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeField(buf *bytes.Buffer, r *record.Record, spec *schema.FieldSpec) error {
	switch spec.Kind {
	case schema.KindRecord:
		child, err := r.Child(spec.Name)
		if err != nil {
			return err
		}
		if child.Loaded() {
			return writeRecord(buf, child)
		}
		return writeValue(buf, r.Link(spec.Name))
	case schema.KindCollection:
		c, err := r.Collection(spec.Name)
		if err != nil {
			return err
		}
		return writeCollection(buf, c)
	default:
		f, err := r.Get(spec.Name)
		if err != nil {
			return err
		}
		return writeScalar(buf, spec, f.Value())
	}
}

func writeCollection(buf *bytes.Buffer, c *record.Collection) error {
	buf.WriteByte('[')
	for i, r := range c.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRecord(buf, r); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeScalar(buf *bytes.Buffer, spec *schema.FieldSpec, v interface{}) error {
	switch spec.Kind {
	case schema.KindDatetime:
		if t, ok := v.(time.Time); ok {
			return writeValue(buf, t.Format(DatetimeLayout))
		}
	case schema.KindJSON:
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return writeValue(buf, json.RawMessage(s))
		}
	}
	return writeValue(buf, v)
}

func writeValue(buf *bytes.Buffer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// FromJSON assigns data to v. A record receives the decoded object through
// Assign; a collection appends one element per array item. Values go through
// validation, so stores bound to v are written.
func FromJSON(ctx context.Context, v interface{}, data []byte) error {
	tree, err := decode(data)
	if err != nil {
		return err
	}

	switch t := v.(type) {
	case *record.Record:
		obj, ok := tree.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: got %s", record.ErrNotAnObject, kindOf(tree))
		}
		return t.Assign(ctx, obj)
	case *record.Collection:
		items, ok := tree.([]interface{})
		if !ok {
			return fmt.Errorf("%w: got %s", record.ErrNotAnArray, kindOf(tree))
		}
		for i, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return fmt.Errorf("item %d: %w: got %s", i, record.ErrNotAnObject, kindOf(item))
			}
			if _, err := t.Append(ctx, obj); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return tree, nil
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
