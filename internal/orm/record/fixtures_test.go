package record

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/port/memstore"
	"github.com/conduit-lang/recordkit/internal/orm/port/sqlstore"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

func subModelSchema() *schema.RecordSchema {
	return schema.NewBuilder("SubModel").
		Integer("age").
		MustBuild()
}

func modelSchema() *schema.RecordSchema {
	return schema.NewBuilder("Model").
		Text("firstname", schema.Required()).
		Text("lastname", schema.Required()).
		Record("submodel", subModelSchema()).
		MustBuild()
}

func sampleSchema() *schema.RecordSchema {
	return schema.NewBuilder("Sample").
		Integer("count", schema.Min(0), schema.Max(10)).
		Number("ratio").
		Bool("active").
		Text("name", schema.MaxLength(5)).
		Email("email").
		Datetime("at").
		JSON("meta").
		MustBuild()
}

func commentSchema() *schema.RecordSchema {
	return schema.NewBuilder("Comment").
		Text("body").
		Integer("post").
		MustBuild()
}

func postSchema() *schema.RecordSchema {
	return schema.NewBuilder("Post").
		Text("title").
		Collection("comments", commentSchema(), schema.ForeignKey("post")).
		MustBuild()
}

func newSQLMock(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlstore.New(db, sqlstore.Postgres), mock
}

func modelRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"firstname", "lastname", "submodel", "id"})
}

func subModelRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"age", "id"})
}

func seededStore() *memstore.Store {
	mem := memstore.New(nil)
	mem.Seed(subModelSchema(), port.Row{"id": 43, "age": 83})
	mem.Seed(modelSchema(),
		port.Row{"id": 1, "firstname": "John", "lastname": "Doe"},
		port.Row{"id": 2, "firstname": "Jane", "lastname": "Doe", "submodel": 43},
		port.Row{"id": 3, "firstname": "Mark", "lastname": "Roe"},
	)
	return mem
}
