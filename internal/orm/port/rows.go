package port

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

// Clean keeps the declared columns of row and normalizes driver values to the
// types validation produces: int64, float64, bool, string and time.Time.
func Clean(rs *schema.RecordSchema, row Row) Row {
	out := make(Row, len(row))
	for _, f := range rs.Fields() {
		if f.Kind == schema.KindCollection {
			continue
		}
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = Normalize(f, v)
	}
	return out
}

// Normalize converts a single stored value for spec. Values that cannot be
// converted are returned unchanged.
func Normalize(spec *schema.FieldSpec, v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch spec.Kind {
	case schema.KindInteger:
		if n, ok := validation.AsInt64(v); ok {
			return n
		}
	case schema.KindNumber:
		if n, ok := validation.AsFloat64(v); ok {
			return n
		}
	case schema.KindBool:
		if b, ok := v.(bool); ok {
			return b
		}
		if n, ok := validation.AsInt64(v); ok {
			return n != 0
		}
	case schema.KindDatetime:
		switch t := v.(type) {
		case time.Time:
			return validation.CanonicalTime(t)
		case string:
			if parsed, ok := validation.ParseDatetime(t); ok {
				return validation.CanonicalTime(parsed)
			}
		}
	case schema.KindRecord:
		if spec.Record != nil {
			if target, ok := spec.Record.Field(spec.ForeignKey); ok {
				return Normalize(target, v)
			}
		}
	}
	return v
}

// Key returns the canonical string form of an identifier, used by stores that
// index rows by id
func Key(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	if n, ok := validation.AsInt64(id); ok {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprint(id)
}

// Match reports whether row satisfies every equality in filter. A nil filter
// value matches missing and nil columns.
func Match(row Row, filter map[string]interface{}) bool {
	for col, want := range filter {
		got := row[col]
		if !Equal(got, want) {
			return false
		}
	}
	return true
}

// Equal compares two column values, treating numerically equal integers of
// different Go types as equal
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := validation.AsInt64(a); ok {
		if bi, ok := validation.AsInt64(b); ok {
			return ai == bi
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	return reflect.DeepEqual(a, b)
}

// SortRows orders rows in place by the OrderBy columns of a query. Rows keep
// their relative order when no column decides.
func SortRows(rows []Row, orderBy []string) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, col := range orderBy {
			desc := strings.HasPrefix(col, "-")
			col = strings.TrimPrefix(col, "-")
			c := compare(rows[i][col], rows[j][col])
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := validation.AsFloat64(a); ok {
		if bf, ok := validation.AsFloat64(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
