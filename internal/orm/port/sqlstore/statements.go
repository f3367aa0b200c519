package sqlstore

import (
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// statement is a SQL text with its bind arguments
type statement struct {
	sql  string
	args []interface{}
}

type builder struct {
	dialect Dialect
	schema  *schema.RecordSchema
}

// columns returns the declared columns present in row, in declaration order
func (b builder) columns(row port.Row) []string {
	var cols []string
	for _, c := range b.schema.Columns() {
		if _, ok := row[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func (b builder) selectList() string {
	return strings.Join(b.schema.Columns(), ", ")
}

// selectByID builds: SELECT a, b, id FROM T WHERE id = $1
func (b builder) selectByID(id interface{}) statement {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.selectList())
	sb.WriteString(" FROM ")
	sb.WriteString(b.schema.Table)
	sb.WriteString(" WHERE ")
	sb.WriteString(b.schema.PrimaryKey)
	sb.WriteString(" = ")
	sb.WriteString(b.dialect.Placeholder(1))
	return statement{sql: sb.String(), args: []interface{}{id}}
}

// query builds a filtered select. Raw SQL is passed through untouched;
// filter and order columns must be declared.
func (b builder) query(q port.Query) (statement, error) {
	if q.IsRaw() {
		return statement{sql: q.SQL, args: q.Args}, nil
	}
	if err := q.Check(b.schema); err != nil {
		return statement{}, err
	}

	var sb strings.Builder
	var args []interface{}
	sb.WriteString("SELECT ")
	sb.WriteString(b.selectList())
	sb.WriteString(" FROM ")
	sb.WriteString(b.schema.Table)

	if len(q.Filter) > 0 {
		conds := make([]string, 0, len(q.Filter))
		for _, col := range q.FilterKeys() {
			v := q.Filter[col]
			if v == nil {
				conds = append(conds, col+" IS NULL")
				continue
			}
			args = append(args, v)
			conds = append(conds, col+" = "+b.dialect.Placeholder(len(args)))
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if len(q.OrderBy) > 0 {
		order := make([]string, len(q.OrderBy))
		for i, col := range q.OrderBy {
			if strings.HasPrefix(col, "-") {
				order[i] = strings.TrimPrefix(col, "-") + " DESC"
			} else {
				order[i] = col
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}
	return statement{sql: sb.String(), args: args}, nil
}

// insert builds: INSERT INTO T (a, b) VALUES ($1, $2) [RETURNING id]
func (b builder) insert(row port.Row) statement {
	cols := b.columns(row)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.schema.Table)
	args := make([]interface{}, 0, len(cols))
	if len(cols) == 0 {
		sb.WriteString(" DEFAULT VALUES")
	} else {
		placeholders := make([]string, len(cols))
		for i, c := range cols {
			args = append(args, row[c])
			placeholders[i] = b.dialect.Placeholder(i + 1)
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(") VALUES (")
		sb.WriteString(strings.Join(placeholders, ", "))
		sb.WriteString(")")
	}
	if b.dialect.Returning() {
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.schema.PrimaryKey)
	}
	return statement{sql: sb.String(), args: args}
}

// update builds: UPDATE T SET a = $1, b = $2 WHERE id = $3
func (b builder) update(row port.Row, id interface{}) statement {
	cols := b.columns(row)

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		args = append(args, row[c])
		sets[i] = c + " = " + b.dialect.Placeholder(i+1)
	}
	args = append(args, id)

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.schema.Table)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(sets, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(b.schema.PrimaryKey)
	sb.WriteString(" = ")
	sb.WriteString(b.dialect.Placeholder(len(args)))
	return statement{sql: sb.String(), args: args}
}

// remove builds: DELETE FROM T WHERE id = $1
func (b builder) remove(id interface{}) statement {
	return statement{
		sql:  "DELETE FROM " + b.schema.Table + " WHERE " + b.schema.PrimaryKey + " = " + b.dialect.Placeholder(1),
		args: []interface{}{id},
	}
}
