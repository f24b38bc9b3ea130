package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status int

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestEncodeScalarsAsLiteralText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{42, "42"},
		{int64(-7), "-7"},
		{uint8(255), "255"},
		{3.5, "3.5"},
		{float32(0.25), "0.25"},
		{true, "true"},
		{false, "false"},
		{"hello", "hello"},
		{`"quoted"`, `"quoted"`},
		{status(3), "3"},
		{[]byte("raw"), "raw"},
		{nil, "null"},
	}

	for _, tt := range tests {
		got, err := Encode(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Encode(%#v)", tt.in)
	}
}

func TestEncodeStructuredAsJSON(t *testing.T) {
	got, err := Encode(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	got, err = Encode(user{Name: "Ann", Age: 30})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann","age":30}`, got)

	got, err = Encode([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", got)

	_, err = Encode(make(chan int))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"true", true},
		{"false", false},
		{"null", nil},
		{"42", int64(42)},
		{"-1", int64(-1)},
		{"3.5", 3.5},
		{"1e3", 1000.0},
		{"hello", "hello"},
		{"", ""},
		{`"quoted"`, `"quoted"`},
		{"NaN", "NaN"},
		{"-", "-"},
		{"{broken", "{broken"},
		{`{"a":1}`, map[string]any{"a": 1.0}},
		{`[1,"x"]`, []any{1.0, "x"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Decode(tt.raw), "Decode(%q)", tt.raw)
	}
}

func TestStructuredRoundTrip(t *testing.T) {
	in := map[string]any{"name": "Ann", "tags": []any{"a", "b"}}

	raw, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, in, Decode(raw))
}

func TestDecodeInto(t *testing.T) {
	var u user
	require.NoError(t, DecodeInto(`{"name":"Ann","age":30}`, &u))
	assert.Equal(t, user{Name: "Ann", Age: 30}, u)

	var s string
	require.NoError(t, DecodeInto("42", &s))
	assert.Equal(t, "42", s)

	var n int
	require.NoError(t, DecodeInto("42", &n))
	assert.Equal(t, 42, n)

	var a any
	require.NoError(t, DecodeInto("true", &a))
	assert.Equal(t, true, a)

	type name string
	var nm name
	require.NoError(t, DecodeInto("bob", &nm))
	assert.Equal(t, name("bob"), nm)

	assert.Error(t, DecodeInto("x", nil))
	assert.Error(t, DecodeInto("x", u))
	assert.Error(t, DecodeInto("not json", &u))
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar(1))
	assert.True(t, IsScalar("x"))
	assert.True(t, IsScalar(status(1)))
	assert.False(t, IsScalar(nil))
	assert.False(t, IsScalar([]byte("x")))
	assert.False(t, IsScalar(map[string]any{}))
	assert.False(t, IsScalar(user{}))
}
