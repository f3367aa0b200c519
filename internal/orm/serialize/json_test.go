package serialize

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/port/memstore"
	"github.com/conduit-lang/recordkit/internal/orm/port/sqlstore"
	"github.com/conduit-lang/recordkit/internal/orm/record"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

func personSchema() *schema.RecordSchema {
	return schema.NewBuilder("Model").
		Text("firstname", schema.Required()).
		Text("lastname", schema.Required()).
		MustBuild()
}

func eventSchema() *schema.RecordSchema {
	return schema.NewBuilder("Event").
		Text("title").
		Integer("seats").
		Number("price").
		Bool("public").
		Datetime("starts").
		JSON("meta").
		Email("contact").
		MustBuild()
}

func TestQueriedRecordToJSON(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT firstname, lastname, id FROM Model WHERE id = $1").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"firstname", "lastname", "id"}).
			AddRow("John", "Doe", int64(1)))

	store := sqlstore.New(db, sqlstore.Postgres)
	r := record.New(personSchema(), record.WithStore(store), record.WithID(1))
	require.NoError(t, r.Query(context.Background(), nil))

	data, err := ToJSON(r)
	require.NoError(t, err)
	assert.Equal(t, `{"firstname":"John","lastname":"Doe"}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToJSONFollowsDeclarationOrder(t *testing.T) {
	rs := schema.NewBuilder("Ordered").
		Text("zeta").
		Text("alpha").
		Integer("mid").
		MustBuild()

	var outputs []string
	for i := 0; i < 3; i++ {
		r := record.New(rs)
		require.NoError(t, r.Hydrate(port.Row{"alpha": "a", "mid": int64(1), "zeta": "z"}))
		data, err := ToJSON(r)
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}

	for _, out := range outputs {
		assert.Equal(t, `{"zeta":"z","alpha":"a","mid":1}`, out)
	}
}

func TestToJSONEncodings(t *testing.T) {
	ctx := context.Background()
	rs := schema.NewBuilder("Account").
		Text("login").
		Password("secret").
		Datetime("seen").
		JSON("prefs").
		MustBuild()
	hash := func(s string) (string, error) { return "h:" + s, nil }

	r := record.New(rs, record.WithHasher(hash))
	require.NoError(t, r.Assign(ctx, map[string]interface{}{
		"login":  "jd",
		"secret": "Secret123",
		"seen":   time.Date(2017, 3, 4, 5, 6, 7, 0, time.UTC),
		"prefs":  map[string]interface{}{"theme": "dark"},
	}))

	data, err := ToJSON(r)
	require.NoError(t, err)
	assert.Equal(t, `{"login":"jd","seen":"2017/03/04 05:06:07","prefs":{"theme":"dark"}}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := record.New(eventSchema())
	require.NoError(t, src.Assign(ctx, map[string]interface{}{
		"title":   "launch",
		"seats":   40,
		"price":   12.5,
		"public":  true,
		"starts":  "2021-06-01 18:30:00",
		"meta":    map[string]interface{}{"tags": []interface{}{"a", "b"}},
		"contact": "ops@example.com",
	}))

	data, err := ToJSON(src)
	require.NoError(t, err)

	dst := record.New(eventSchema())
	require.NoError(t, FromJSON(ctx, dst, data))
	assert.Equal(t, src.Value(), dst.Value())

	again, err := ToJSON(dst)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestRoundTripDatetimes(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2021-06-01T18:30:00+02:00", want: time.Date(2021, 6, 1, 16, 30, 0, 0, time.UTC)},
		{in: "2021-06-01T18:30:00.5Z", want: time.Date(2021, 6, 1, 18, 30, 0, 0, time.UTC)},
		{in: "2021-06-01 18:30:00", want: time.Date(2021, 6, 1, 18, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			src := record.New(eventSchema())
			require.NoError(t, src.Set(ctx, "starts", tt.in))

			data, err := ToJSON(src)
			require.NoError(t, err)

			dst := record.New(eventSchema())
			require.NoError(t, FromJSON(ctx, dst, data))
			assert.Equal(t, src.Value(), dst.Value())

			f, err := dst.Get("starts")
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Value())
		})
	}
}

func TestNestedRecords(t *testing.T) {
	ctx := context.Background()
	sub := schema.NewBuilder("SubModel").Integer("age").MustBuild()
	rs := schema.NewBuilder("Model").
		Text("firstname").
		Record("submodel", sub).
		MustBuild()

	linked := record.New(rs)
	require.NoError(t, linked.Hydrate(port.Row{"firstname": "Jane", "submodel": int64(43)}))
	data, err := ToJSON(linked)
	require.NoError(t, err)
	assert.Equal(t, `{"firstname":"Jane","submodel":43}`, string(data), "unloaded children are written as their link")

	loaded := record.New(rs)
	require.NoError(t, FromJSON(ctx, loaded, []byte(`{"firstname":"Bob","submodel":{"age":7}}`)))
	data, err = ToJSON(loaded)
	require.NoError(t, err)
	assert.Equal(t, `{"firstname":"Bob","submodel":{"age":7}}`, string(data))
}

func TestCollectionJSON(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New(nil)
	people := record.NewCollection(personSchema(), record.WithStore(mem))

	input := `[{"firstname":"Ann","lastname":"Lee"},{"firstname":"Bob","lastname":"Ray"}]`
	require.NoError(t, FromJSON(ctx, people, []byte(input)))
	require.NoError(t, people.Commit(ctx))
	assert.Equal(t, 2, people.Len())
	assert.Len(t, mem.Rows("Model"), 2)

	data, err := ToJSON(people)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(data))

	empty, err := ToJSON(record.NewCollection(personSchema()))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(empty))
}

func TestFromJSONErrors(t *testing.T) {
	ctx := context.Background()

	err := FromJSON(ctx, record.New(personSchema()), []byte(`[1]`))
	assert.ErrorIs(t, err, record.ErrNotAnObject)

	err = FromJSON(ctx, record.NewCollection(personSchema()), []byte(`{"firstname":"x"}`))
	assert.ErrorIs(t, err, record.ErrNotAnArray)

	err = FromJSON(ctx, record.NewCollection(personSchema()), []byte(`["x"]`))
	assert.ErrorIs(t, err, record.ErrNotAnObject)

	err = FromJSON(ctx, record.New(personSchema()), []byte(`{"nickname":"x"}`))
	assert.ErrorIs(t, err, record.ErrUnknownField)

	err = FromJSON(ctx, record.New(personSchema()), []byte(`{`))
	assert.Error(t, err)

	err = FromJSON(ctx, "nope", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ToJSON(42)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
