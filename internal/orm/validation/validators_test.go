package validation

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/conduit-lang/recordkit/internal/auth"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

func field(t *testing.T, kind schema.FieldKind, opts ...schema.Option) *schema.FieldSpec {
	t.Helper()
	rs := schema.NewBuilder("Test").Field("f", kind, opts...).MustBuild()
	f, _ := rs.Field("f")
	return f
}

var testValidator = New(auth.Hasher{Cost: bcrypt.MinCost}.Hash)

func TestValidateScalars(t *testing.T) {
	ts := time.Date(2017, 3, 4, 5, 6, 7, 0, time.UTC)
	id := uuid.NewString()

	tests := []struct {
		name    string
		kind    schema.FieldKind
		opts    []schema.Option
		value   interface{}
		want    interface{}
		wantErr string
	}{
		{name: "integer", kind: schema.KindInteger, value: 42, want: int64(42)},
		{name: "integer from int32", kind: schema.KindInteger, value: int32(7), want: int64(7)},
		{name: "integer from whole float", kind: schema.KindInteger, value: 3.0, want: int64(3)},
		{name: "integer from json number", kind: schema.KindInteger, value: json.Number("12"), want: int64(12)},
		{name: "integer fraction", kind: schema.KindInteger, value: 3.5, wantErr: "invalid integer value"},
		{name: "integer string", kind: schema.KindInteger, value: "3", wantErr: "invalid integer value"},
		{name: "integer above max", kind: schema.KindInteger, opts: []schema.Option{schema.Max(10)}, value: 11, wantErr: "exceeded maximum value"},
		{name: "integer below min", kind: schema.KindInteger, opts: []schema.Option{schema.Min(1)}, value: 0, wantErr: "less than minimum value"},
		{name: "integer at bounds", kind: schema.KindInteger, opts: []schema.Option{schema.Min(1), schema.Max(10)}, value: 10, want: int64(10)},
		{name: "integer nil", kind: schema.KindInteger, value: nil, want: nil},

		{name: "number", kind: schema.KindNumber, value: 1.5, want: 1.5},
		{name: "number from int", kind: schema.KindNumber, value: 2, want: 2.0},
		{name: "number from json number", kind: schema.KindNumber, value: json.Number("2.25"), want: 2.25},
		{name: "number string", kind: schema.KindNumber, value: "2", wantErr: "invalid number value"},
		{name: "number above max", kind: schema.KindNumber, opts: []schema.Option{schema.Max(1)}, value: 1.01, wantErr: "exceeded maximum value"},

		{name: "bool true", kind: schema.KindBool, value: true, want: true},
		{name: "bool one", kind: schema.KindBool, value: 1, want: true},
		{name: "bool zero", kind: schema.KindBool, value: 0, want: false},
		{name: "bool nil", kind: schema.KindBool, value: nil, want: false},
		{name: "bool two", kind: schema.KindBool, value: 2, wantErr: "invalid boolean value"},
		{name: "bool string", kind: schema.KindBool, value: "yes", wantErr: "invalid boolean value"},

		{name: "text", kind: schema.KindText, value: "hello", want: "hello"},
		{name: "text empty without bounds", kind: schema.KindText, value: "", want: ""},
		{name: "text not string", kind: schema.KindText, value: 5, wantErr: "invalid string value"},
		{name: "text too long", kind: schema.KindText, opts: []schema.Option{schema.MaxLength(5)}, value: "abcdef", wantErr: "exceeded maximum length"},
		{name: "text at max", kind: schema.KindText, opts: []schema.Option{schema.MaxLength(5)}, value: "abcde", want: "abcde"},
		{name: "text multibyte counts runes", kind: schema.KindText, opts: []schema.Option{schema.MaxLength(3)}, value: "äöü", want: "äöü"},
		{name: "text max zero is unlimited", kind: schema.KindText, opts: []schema.Option{schema.MaxLength(0)}, value: strings.Repeat("x", 500), want: strings.Repeat("x", 500)},
		{name: "text too short", kind: schema.KindText, opts: []schema.Option{schema.MinLength(2)}, value: "a", wantErr: "less than required length"},

		{name: "email", kind: schema.KindEmail, value: "john@example.com", want: "john@example.com"},
		{name: "email without tld", kind: schema.KindEmail, value: "john@example", wantErr: "invalid email value"},
		{name: "email without at", kind: schema.KindEmail, value: "john.example.com", wantErr: "invalid email value"},
		{name: "email not string", kind: schema.KindEmail, value: 1, wantErr: "invalid string value"},

		{name: "uuid", kind: schema.KindUUID, value: id, want: id},
		{name: "uuid short", kind: schema.KindUUID, value: "1234", wantErr: "invalid uuid value"},
		{name: "uuid not string", kind: schema.KindUUID, value: 1234, wantErr: "invalid uuid value"},

		{name: "datetime time", kind: schema.KindDatetime, value: ts, want: ts},
		{name: "datetime pointer", kind: schema.KindDatetime, value: &ts, want: ts},
		{name: "datetime rfc3339", kind: schema.KindDatetime, value: "2017-03-04T05:06:07Z", want: ts},
		{name: "datetime slashes", kind: schema.KindDatetime, value: "2017/03/04 05:06:07", want: ts},
		{name: "datetime space", kind: schema.KindDatetime, value: "2017-03-04 05:06:07", want: ts},
		{name: "datetime offset", kind: schema.KindDatetime, value: "2017-03-04T07:06:07+02:00", want: ts},
		{name: "datetime fraction", kind: schema.KindDatetime, value: "2017-03-04T05:06:07.5Z", want: ts},
		{name: "datetime zoned time", kind: schema.KindDatetime, value: ts.In(time.FixedZone("X", -3*60*60)), want: ts},
		{name: "datetime garbage", kind: schema.KindDatetime, value: "yesterday", wantErr: "invalid datetime value"},
		{name: "datetime number", kind: schema.KindDatetime, value: 5, wantErr: "invalid datetime value"},

		{name: "json object", kind: schema.KindJSON, value: map[string]interface{}{"a": 1}, want: `{"a":1}`},
		{name: "json list", kind: schema.KindJSON, value: []interface{}{"x", 2}, want: `["x",2]`},
		{name: "json nil", kind: schema.KindJSON, value: nil, want: "null"},
		{name: "json unsupported", kind: schema.KindJSON, value: make(chan int), wantErr: "invalid json value"},

		{
			name:  "choice accepted",
			kind:  schema.KindText,
			opts:  []schema.Option{schema.Choices(schema.Choice{Value: "a"}, schema.Choice{Value: "b"})},
			value: "b",
			want:  "b",
		},
		{
			name:    "choice rejected",
			kind:    schema.KindText,
			opts:    []schema.Option{schema.Choices(schema.Choice{Value: "a"})},
			value:   "c",
			wantErr: "invalid choice",
		},
		{
			name:  "integer choice declared as int",
			kind:  schema.KindInteger,
			opts:  []schema.Option{schema.Choices(schema.Choice{Value: 1}, schema.Choice{Value: 2})},
			value: json.Number("2"),
			want:  int64(2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := field(t, tt.kind, tt.opts...)
			got, err := testValidator.Validate(spec, tt.value)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				fe, ok := AsFieldError(err)
				require.True(t, ok)
				assert.Equal(t, "f", fe.Field)
				assert.Equal(t, tt.wantErr, fe.Description)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	values := map[schema.FieldKind]interface{}{
		schema.KindInteger:  int64(5),
		schema.KindNumber:   2.5,
		schema.KindBool:     true,
		schema.KindText:     "abc",
		schema.KindEmail:    "a@b.co",
		schema.KindUUID:     uuid.NewString(),
		schema.KindDatetime: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	for kind, value := range values {
		spec := field(t, kind)
		once, err := testValidator.Validate(spec, value)
		require.NoError(t, err, kind.String())
		twice, err := testValidator.Validate(spec, once)
		require.NoError(t, err, kind.String())
		assert.Equal(t, once, twice, kind.String())
		assert.Equal(t, value, once, kind.String())
	}
}

func TestValidatePassword(t *testing.T) {
	spec := field(t, schema.KindPassword, schema.MinLength(6), schema.Label("Password"))

	t.Run("hashes plain text", func(t *testing.T) {
		got, err := testValidator.Validate(spec, "Secret123")
		require.NoError(t, err)
		hash, ok := got.(string)
		require.True(t, ok)
		assert.NotEqual(t, "Secret123", hash)
		assert.True(t, auth.CheckPassword("Secret123", hash))
	})

	t.Run("keeps existing hash", func(t *testing.T) {
		hash, err := auth.Hasher{Cost: bcrypt.MinCost}.Hash("Secret123")
		require.NoError(t, err)

		got, err := testValidator.Validate(spec, hash)
		require.NoError(t, err)
		assert.Equal(t, hash, got)
	})

	t.Run("complexity", func(t *testing.T) {
		tests := []struct {
			value string
			want  string
		}{
			{"secretpass", "1 numbers, 1 upper case characters"},
			{"SECRET123", "1 lower case characters"},
			{"Secretpass", "1 numbers"},
			{"!!!!!!!!", "1 numbers, 1 lower case characters, 1 upper case characters"},
		}
		for _, tt := range tests {
			_, err := testValidator.Validate(spec, tt.value)
			require.Error(t, err, tt.value)
			fe, ok := AsFieldError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, fe.Description)
			assert.Nil(t, fe.Value, "password errors must not carry the value")
		}
	})

	t.Run("length", func(t *testing.T) {
		_, err := testValidator.Validate(spec, "Ab1")
		require.Error(t, err)
		fe, _ := AsFieldError(err)
		assert.Equal(t, "less than required length", fe.Description)
		assert.Nil(t, fe.Value)
		assert.Equal(t, 6, fe.Limit)
	})

	t.Run("not a string", func(t *testing.T) {
		_, err := testValidator.Validate(spec, 12345)
		require.Error(t, err)
	})

	t.Run("nil passes", func(t *testing.T) {
		got, err := testValidator.Validate(spec, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestValidateNestedKinds(t *testing.T) {
	sub := schema.NewBuilder("Sub").MustBuild()
	rs := schema.NewBuilder("M").Record("sub", sub).MustBuild()
	spec, _ := rs.Field("sub")

	_, err := Validate(spec, 5)
	assert.Error(t, err)
}

func TestParseDatetime(t *testing.T) {
	got, ok := ParseDatetime(" 2001-02-03 ")
	require.True(t, ok)
	assert.Equal(t, time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC), got)

	_, ok = ParseDatetime("03.02.2001")
	assert.False(t, ok)
}
