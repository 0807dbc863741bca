package value

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// numberLiteral matches json.Number look-alikes from other decoders.
type numberLiteral interface {
	String() string
	Float64() (float64, error)
	Int64() (int64, error)
}

// FromInterface converts the output of a generic decoder into a Value.
// Numbers should arrive as json.Number so integers keep full precision;
// objects are enumerated in ascending key order.
func FromInterface(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return ParseNumber(string(x))
	case numberLiteral:
		return ParseNumber(x.String())
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Uint(uint64(x)), nil
	case uint32:
		return Uint(uint64(x)), nil
	case uint64:
		return Uint(x), nil
	case []interface{}:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return Value{kind: KindSequence, seq: items}, nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(x))
		for name, item := range x {
			iv, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			fields[name] = iv
		}
		return Map(MappingFromMap(fields)), nil
	default:
		return Value{}, errors.Newf(errors.ErrorTypeConversion, "unsupported decoded type %T", v)
	}
}

// ParseNumber classifies a numeric literal: a literal that fits an unsigned
// 64-bit integer becomes Uint, one that fits a signed 64-bit integer becomes
// Int, anything else that parses as a float becomes Float.
func ParseNumber(lit string) (Value, error) {
	if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return Uint(u), nil
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, errors.Wrap(err, errors.ErrorTypeConversion, "invalid number literal").
			WithDetail("literal", lit)
	}
	return Float(f), nil
}

// InferScalar types a bare text field the way CSV columns are read:
// "true"/"false" become Bool, integers and floats become numbers, anything
// else stays a String.
func InferScalar(text string) Value {
	switch text {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}

	if text == "" {
		return String(text)
	}
	if c := text[0]; c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		if v, err := ParseNumber(text); err == nil {
			if f, ok := v.AsFloat(); !ok || !(math.IsInf(f, 0) || math.IsNaN(f)) {
				return v
			}
		}
	}
	return String(text)
}
