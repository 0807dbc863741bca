// Package json wraps goccy/go-json for the hot decode path of JSON-lines
// sources. Numbers are always decoded as json.Number so 64-bit integers are
// never rounded through float64.
package json

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is the literal type produced for JSON numbers.
type Number = gojson.Number

var readerPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewReader(nil)
	},
}

// DecodeValue decodes exactly one JSON value from data. Trailing
// non-whitespace input is an error.
func DecodeValue(data []byte) (interface{}, error) {
	r := readerPool.Get().(*bytes.Reader)
	r.Reset(data)
	defer func() {
		r.Reset(nil)
		readerPool.Put(r)
	}()

	dec := gojson.NewDecoder(r)
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after JSON value")
		}
		return nil, fmt.Errorf("unexpected data after JSON value: %w", err)
	}

	return v, nil
}

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}
