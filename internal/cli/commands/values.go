package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/serialize"
)

// parseValue converts text typed on the command line to the Go type the
// field validators accept. Empty text is nil.
func parseValue(spec *schema.FieldSpec, s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}

	switch spec.Kind {
	case schema.KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", spec.Name, s)
		}
		return n, nil
	case schema.KindNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", spec.Name, s)
		}
		return f, nil
	case schema.KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a boolean", spec.Name, s)
		}
		return b, nil
	case schema.KindJSON:
		var v interface{}
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return s, nil
		}
		return v, nil
	case schema.KindRecord:
		if target, ok := spec.Record.Field(spec.ForeignKey); ok {
			return parseValue(target, s)
		}
	}
	return s, nil
}

// parseFilter turns name=value pairs into a query filter
func parseFilter(rs *schema.RecordSchema, pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, text, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q must be name=value", pair)
		}
		spec, ok := rs.Field(name)
		if !ok || spec.Kind == schema.KindCollection {
			return nil, fmt.Errorf("%s has no column %q", rs.Name, name)
		}
		v, err := parseValue(spec, text)
		if err != nil {
			return nil, err
		}
		filter[name] = port.Normalize(spec, v)
	}
	return filter, nil
}

// formatCell renders a stored value for table output
func formatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(serialize.DatetimeLayout)
	case map[string]interface{}, []interface{}, []map[string]interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// columns lists the fields shown in tables: the primary key first, then the
// visible scalar and link fields in declaration order
func columns(rs *schema.RecordSchema) []string {
	cols := []string{rs.PrimaryKey}
	for _, f := range rs.Fields() {
		if f.Name == rs.PrimaryKey || f.Hidden || f.Kind == schema.KindPassword || f.Kind == schema.KindCollection {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}
