package value

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

func TestToColumnBinding(t *testing.T) {
	tests := []struct {
		name     string
		in       Value
		expected interface{}
	}{
		{name: "string", in: String("abc"), expected: "abc"},
		{name: "bool", in: Bool(true), expected: true},
		{name: "signed integer", in: Int(-42), expected: int64(-42)},
		{name: "small unsigned integer", in: Uint(42), expected: int64(42)},
		{name: "max unsigned wraps to -1", in: Uint(math.MaxUint64), expected: int64(-1)},
		{name: "2^63 wraps to min int64", in: Uint(1 << 63), expected: int64(math.MinInt64)},
		{name: "float", in: Float(1.5), expected: 1.5},
		{
			name:     "sequence",
			in:       Seq(Int(1), String("x")),
			expected: []interface{}{int64(1), "x"},
		},
		{
			name: "mapping",
			in: Map(NewMapping(
				Field{Name: "color", Value: String("red")},
				Field{Name: "size", Value: Uint(3)},
			)),
			expected: map[string]interface{}{"color": "red", "size": int64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToColumnBinding(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToColumnBinding_NullIsUnset(t *testing.T) {
	got, err := ToColumnBinding(Null())
	require.NoError(t, err)
	assert.True(t, IsUnset(got))
	assert.NotNil(t, got, "null must not bind as an explicit nil")
}

func TestToColumnBinding_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		path string
	}{
		{name: "invalid value", in: Value{}, path: ""},
		{name: "null in sequence", in: Seq(Int(1), Null()), path: "[1]"},
		{
			name: "null in mapping",
			in:   Map(NewMapping(Field{Name: "a", Value: Null()})),
			path: ".a",
		},
		{
			name: "deep null",
			in:   Seq(Map(NewMapping(Field{Name: "tags", Value: Seq(Null())}))),
			path: "[0].tags[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToColumnBinding(tt.in)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.path, e.Details["path"])
		})
	}
}

func TestRecordBindings(t *testing.T) {
	rec := NewMapping(
		Field{Name: "id", Value: Int(1)},
		Field{Name: "note", Value: Null()},
	)

	got, err := RecordBindings(rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got["id"])
	assert.True(t, IsUnset(got["note"]))
}

func TestNewMapping_KeepsOrderAndDeduplicates(t *testing.T) {
	m := NewMapping(
		Field{Name: "b", Value: Int(1)},
		Field{Name: "a", Value: Int(2)},
		Field{Name: "b", Value: Int(3)},
	)

	assert.Equal(t, []string{"b", "a"}, m.Names())
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.True(t, v.Equal(Int(3)))
	assert.False(t, m.Has("c"))
}

func TestValue_Equal(t *testing.T) {
	a := Map(NewMapping(Field{Name: "x", Value: Int(1)}, Field{Name: "y", Value: String("s")}))
	b := Map(NewMapping(Field{Name: "y", Value: String("s")}, Field{Name: "x", Value: Uint(1)}))

	assert.True(t, a.Equal(b), "mapping equality ignores order and integer signedness")
	assert.False(t, Uint(math.MaxUint64).Equal(Int(-1)))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.True(t, Seq(Null(), Bool(false)).Equal(Seq(Null(), Bool(false))))
}

func TestFromInterface(t *testing.T) {
	var decoded interface{}
	dec := json.NewDecoder(stringsReader(`{"b":[1,-2,2.5,null],"a":{"n":18446744073709551615},"c":true,"d":"x"}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&decoded))

	v, err := FromInterface(decoded)
	require.NoError(t, err)

	m, ok := v.AsMapping()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Names())

	expected := Map(NewMapping(
		Field{Name: "a", Value: Map(NewMapping(Field{Name: "n", Value: Uint(math.MaxUint64)}))},
		Field{Name: "b", Value: Seq(Uint(1), Int(-2), Float(2.5), Null())},
		Field{Name: "c", Value: Bool(true)},
		Field{Name: "d", Value: String("x")},
	))
	assert.True(t, expected.Equal(v), "got %s", v)
}

func TestFromInterface_Unsupported(t *testing.T) {
	_, err := FromInterface(struct{}{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		lit      string
		expected Value
	}{
		{"0", Uint(0)},
		{"9223372036854775808", Uint(1 << 63)},
		{"-9223372036854775808", Int(math.MinInt64)},
		{"1e3", Float(1000)},
		{"-0.25", Float(-0.25)},
		{"18446744073709551616", Float(18446744073709551616)},
	}

	for _, tt := range tests {
		t.Run(tt.lit, func(t *testing.T) {
			got, err := ParseNumber(tt.lit)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}

	_, err := ParseNumber("twelve")
	assert.Error(t, err)
}

func TestInferScalar(t *testing.T) {
	tests := []struct {
		text     string
		expected Value
	}{
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"True", String("True")},
		{"", String("")},
		{"12", Uint(12)},
		{"-12", Int(-12)},
		{"3.25", Float(3.25)},
		{"inf", String("inf")},
		{"-Inf", String("-Inf")},
		{"12abc", String("12abc")},
		{"hello", String("hello")},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := InferScalar(tt.text)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}
}

func TestValue_String(t *testing.T) {
	v := Map(NewMapping(
		Field{Name: "a", Value: Seq(Int(-1), Uint(2))},
		Field{Name: "b", Value: Null()},
		Field{Name: "c", Value: String("q\"")},
	))
	assert.Equal(t, `{"a":[-1,2],"b":null,"c":"q\""}`, v.String())
	assert.Equal(t, "mapping", v.Kind().String())
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
