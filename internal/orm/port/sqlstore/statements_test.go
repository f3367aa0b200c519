package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

func modelSchema() *schema.RecordSchema {
	sub := schema.NewBuilder("SubModel").Integer("age", schema.Required()).MustBuild()
	return schema.NewBuilder("Model").
		Text("firstname", schema.Required()).
		Text("lastname", schema.Required()).
		Record("submodel", sub).
		MustBuild()
}

func TestBuilder(t *testing.T) {
	rs := modelSchema()

	tests := []struct {
		name     string
		dialect  Dialect
		build    func(b builder) statement
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "select postgres",
			dialect:  Postgres,
			build:    func(b builder) statement { return b.selectByID(1) },
			wantSQL:  "SELECT firstname, lastname, submodel, id FROM Model WHERE id = $1",
			wantArgs: []interface{}{1},
		},
		{
			name:     "select sqlite",
			dialect:  SQLite,
			build:    func(b builder) statement { return b.selectByID(1) },
			wantSQL:  "SELECT firstname, lastname, submodel, id FROM Model WHERE id = ?",
			wantArgs: []interface{}{1},
		},
		{
			name:    "insert postgres follows declaration order",
			dialect: Postgres,
			build: func(b builder) statement {
				return b.insert(port.Row{"lastname": "Doe", "firstname": "Jane"})
			},
			wantSQL:  "INSERT INTO Model (firstname, lastname) VALUES ($1, $2) RETURNING id",
			wantArgs: []interface{}{"Jane", "Doe"},
		},
		{
			name:     "insert sqlite",
			dialect:  SQLite,
			build:    func(b builder) statement { return b.insert(port.Row{"submodel": int64(43)}) },
			wantSQL:  "INSERT INTO Model (submodel) VALUES (?)",
			wantArgs: []interface{}{int64(43)},
		},
		{
			name:     "insert without columns",
			dialect:  SQLite,
			build:    func(b builder) statement { return b.insert(port.Row{}) },
			wantSQL:  "INSERT INTO Model DEFAULT VALUES",
			wantArgs: []interface{}{},
		},
		{
			name:    "update ignores undeclared columns",
			dialect: Postgres,
			build: func(b builder) statement {
				return b.update(port.Row{"firstname": "Mark", "lastname": "Shuttleworth", "bogus": 1}, 3)
			},
			wantSQL:  "UPDATE Model SET firstname = $1, lastname = $2 WHERE id = $3",
			wantArgs: []interface{}{"Mark", "Shuttleworth", 3},
		},
		{
			name:     "update to null",
			dialect:  SQLite,
			build:    func(b builder) statement { return b.update(port.Row{"submodel": nil}, 1) },
			wantSQL:  "UPDATE Model SET submodel = ? WHERE id = ?",
			wantArgs: []interface{}{nil, 1},
		},
		{
			name:     "delete",
			dialect:  Postgres,
			build:    func(b builder) statement { return b.remove(1) },
			wantSQL:  "DELETE FROM Model WHERE id = $1",
			wantArgs: []interface{}{1},
		},
		{
			name:    "filter query",
			dialect: Postgres,
			build: func(b builder) statement {
				st, _ := b.query(port.Query{
					Filter:  map[string]interface{}{"lastname": "Doe", "firstname": nil, "submodel": 43},
					OrderBy: []string{"lastname", "-id"},
				})
				return st
			},
			wantSQL:  "SELECT firstname, lastname, submodel, id FROM Model WHERE firstname IS NULL AND lastname = $1 AND submodel = $2 ORDER BY lastname, id DESC",
			wantArgs: []interface{}{"Doe", 43},
		},
		{
			name:     "raw query",
			dialect:  SQLite,
			build: func(b builder) statement {
				st, _ := b.query(port.Query{SQL: "SELECT * FROM Model WHERE age > ?", Args: []interface{}{3}})
				return st
			},
			wantSQL:  "SELECT * FROM Model WHERE age > ?",
			wantArgs: []interface{}{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.build(builder{dialect: tt.dialect, schema: rs})
			assert.Equal(t, tt.wantSQL, st.sql)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, st.args)
				return
			}
			assert.Equal(t, tt.wantArgs, st.args)
		})
	}
}

func TestBuilderRejectsUndeclaredColumns(t *testing.T) {
	b := builder{dialect: Postgres, schema: modelSchema()}

	queries := []port.Query{
		{Filter: map[string]interface{}{"1=1; DROP TABLE Model; --": 1}},
		{OrderBy: []string{"-nickname"}},
		{Filter: map[string]interface{}{"lastname": "Doe"}, OrderBy: []string{"age"}},
	}
	for _, q := range queries {
		_, err := b.query(q)
		assert.ErrorIs(t, err, port.ErrUnknownColumn)
	}
}

func TestDialectFor(t *testing.T) {
	for _, driver := range []string{"pgx", "postgres"} {
		d, err := DialectFor(driver)
		assert.NoError(t, err)
		assert.Equal(t, Postgres, d)
	}
	d, err := DialectFor("sqlite3")
	assert.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}
