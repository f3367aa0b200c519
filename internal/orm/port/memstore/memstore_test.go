package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

func personSchema() *schema.RecordSchema {
	return schema.NewBuilder("Person").
		Text("firstname").
		Text("lastname").
		MustBuild()
}

func TestInsertSelectCommit(t *testing.T) {
	ctx := context.Background()
	rs := personSchema()
	store := New(nil)
	p := store.Port(rs)

	id, err := p.Insert(ctx, port.Row{"firstname": "John", "lastname": "Doe"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	rows, err := p.Select(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, port.Row{"id": int64(1), "firstname": "John", "lastname": "Doe"}, rows[0])

	assert.Empty(t, store.Rows("Person"), "uncommitted rows must not be visible as committed")

	require.NoError(t, p.Commit(ctx))
	assert.Len(t, store.Rows("Person"), 1)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	rs := personSchema()
	store := New(nil)
	store.Seed(rs, port.Row{"id": 1, "firstname": "John"})
	p := store.Port(rs)

	require.NoError(t, p.Update(ctx, port.Row{"firstname": "Jane"}, int64(1)))
	_, err := p.Insert(ctx, port.Row{"firstname": "Mark"})
	require.NoError(t, err)
	require.NoError(t, p.Delete(ctx, 1))

	require.NoError(t, p.Rollback(ctx))

	rows, err := p.Select(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "John", rows[0]["firstname"])

	all, err := p.Query(ctx, port.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSequenceFollowsSeededIDs(t *testing.T) {
	ctx := context.Background()
	rs := personSchema()
	store := New(nil)
	store.Seed(rs, port.Row{"id": 41, "firstname": "John"})

	id, err := store.Port(rs).Insert(ctx, port.Row{"firstname": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestInsertWithClientKey(t *testing.T) {
	ctx := context.Background()
	rs := schema.NewBuilder("Token").UUID("id").Text("name").MustBuild()
	p := New(nil).Port(rs)

	id, err := p.Insert(ctx, port.Row{"id": "9b2f0c0e-4a57-4f43-9a51-0b7f5d4c6a11", "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, "9b2f0c0e-4a57-4f43-9a51-0b7f5d4c6a11", id)

	_, err = p.Insert(ctx, port.Row{"id": "9b2f0c0e-4a57-4f43-9a51-0b7f5d4c6a11", "name": "b"})
	assert.Error(t, err)
}

func TestQueryFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	rs := personSchema()
	store := New(nil)
	store.Seed(rs,
		port.Row{"firstname": "John", "lastname": "Doe"},
		port.Row{"firstname": "Jane", "lastname": "Doe"},
		port.Row{"firstname": "Mark", "lastname": "Roe"},
	)
	p := store.Port(rs)

	rows, err := p.Query(ctx, port.Query{
		Filter:  map[string]interface{}{"lastname": "Doe"},
		OrderBy: []string{"firstname"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane", rows[0]["firstname"])
	assert.Equal(t, "John", rows[1]["firstname"])

	_, err = p.Query(ctx, port.Query{SQL: "SELECT * FROM Person"})
	assert.ErrorIs(t, err, port.ErrUnsupportedQuery)

	_, err = p.Query(ctx, port.Query{OrderBy: []string{"nickname"}})
	assert.ErrorIs(t, err, port.ErrUnknownColumn)
}

func TestPortsShareUnitOfWork(t *testing.T) {
	ctx := context.Background()
	people := personSchema()
	tokens := schema.NewBuilder("Token").Text("name").MustBuild()
	store := New(nil)

	_, err := store.Port(people).Insert(ctx, port.Row{"firstname": "John"})
	require.NoError(t, err)
	_, err = store.Port(tokens).Insert(ctx, port.Row{"name": "t"})
	require.NoError(t, err)

	require.NoError(t, store.Port(tokens).Commit(ctx))

	assert.Len(t, store.Rows("Person"), 1)
	assert.Len(t, store.Rows("Token"), 1)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Port(personSchema()).Select(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
