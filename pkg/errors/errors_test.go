package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestErrorType_Fatal(t *testing.T) {
	tests := []struct {
		typ   ErrorType
		fatal bool
	}{
		{ErrorTypeConfig, true},
		{ErrorTypeSource, true},
		{ErrorTypeDecode, true},
		{ErrorTypeConnection, true},
		{ErrorTypeInternal, true},
		{ErrorTypeConversion, false},
		{ErrorTypeSchema, false},
		{ErrorTypeWrite, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.typ.Fatal())
			assert.Equal(t, tt.fatal, IsFatal(New(tt.typ, "x")))
		})
	}
	assert.False(t, IsFatal(nil))
}

func TestWrap_KeepsInnerStack(t *testing.T) {
	inner := New(ErrorTypeConversion, "nested null")
	outer := Wrap(inner, ErrorTypeWrite, "insert failed")

	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeWrite))
	assert.Nil(t, Wrap(nil, ErrorTypeWrite, "nothing"))

	plain := Wrap(io.EOF, ErrorTypeSource, "read failed")
	require.NotEmpty(t, plain.Stack)
	assert.Contains(t, plain.Stack[0].Function, "TestWrap_KeepsInnerStack")
}

func TestDetail_SearchesChain(t *testing.T) {
	inner := New(ErrorTypeConversion, "nested null").WithDetail("path", "tags[1]")
	outer := Wrap(fmt.Errorf("bind: %w", inner), ErrorTypeWrite, "insert failed").WithDetail("record", 3)

	v, ok := Detail(outer, "record")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = Detail(outer, "path")
	assert.True(t, ok)
	assert.Equal(t, "tags[1]", v)

	_, ok = Detail(outer, "missing")
	assert.False(t, ok)
}

func TestMarshalLogObject(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, ErrorTypeDecode, "invalid JSON line").
		WithDetail("line", 7).
		WithDetail("source_path", "a.json")

	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, err.MarshalLogObject(enc))

	assert.Equal(t, "decode", enc.Fields["type"])
	assert.Equal(t, "invalid JSON line", enc.Fields["message"])
	assert.Equal(t, "unexpected EOF", enc.Fields["cause"])
	assert.Equal(t, 7, enc.Fields["line"])
	assert.Equal(t, "a.json", enc.Fields["source_path"])
}
