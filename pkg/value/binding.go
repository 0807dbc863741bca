package value

import (
	"strconv"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

type unsetBinding struct{}

// Unset is the binding produced for a Null value. It means "leave this
// column out of the write", so an upsert keeps whatever the row already
// stores, which an explicit null would overwrite.
var Unset interface{} = unsetBinding{}

// IsUnset reports whether b is the Unset sentinel.
func IsUnset(b interface{}) bool {
	_, ok := b.(unsetBinding)
	return ok
}

// ToColumnBinding converts v into the Go representation the CQL driver
// binds for a column:
//
//	String   -> string
//	Bool     -> bool
//	Null     -> Unset
//	Integer  -> int64 (unsigned values are reinterpreted two's-complement)
//	Float    -> float64
//	Sequence -> []interface{}
//	Mapping  -> map[string]interface{}
func ToColumnBinding(v Value) (interface{}, error) {
	return bind(v, "", false)
}

// RecordBindings converts every column of r.
func RecordBindings(r Record) (map[string]interface{}, error) {
	out := make(map[string]interface{}, r.Len())
	for _, f := range r.fields {
		b, err := bind(f.Value, f.Name, false)
		if err != nil {
			return nil, err
		}
		out[f.Name] = b
	}
	return out, nil
}

// bind converts v; nested is set for elements below a top-level column.
func bind(v Value, path string, nested bool) (interface{}, error) {
	switch v.kind {
	case KindNull:
		if nested {
			return nil, errors.New(errors.ErrorTypeConversion, "null element inside a collection").
				WithDetail("path", path)
		}
		return Unset, nil
	case KindBool:
		return v.b, nil
	case KindInteger:
		// Unsigned payloads keep their bit pattern: 2^64-1 binds as -1.
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindString:
		return v.s, nil
	case KindSequence:
		out := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			b, err := bind(item, path+"["+strconv.Itoa(i)+"]", true)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	case KindMapping:
		out := make(map[string]interface{}, len(v.m.fields))
		for _, f := range v.m.fields {
			b, err := bind(f.Value, path+"."+f.Name, true)
			if err != nil {
				return nil, err
			}
			out[f.Name] = b
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConversion, "cannot bind value of kind %s", v.kind).
			WithDetail("path", path)
	}
}
