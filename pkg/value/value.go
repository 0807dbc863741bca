// Package value implements the dynamic value model used between record
// decoding and the store writer.
//
// A Value is an immutable tagged union over null, bool, integer, float,
// string, sequence and mapping. Decoders build Values from loosely typed
// input (JSON lines, CSV rows) and the store writer turns them into column
// bindings with ToColumnBinding.
package value

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which member of the union a Value holds.
type Kind uint8

const (
	// KindInvalid is the zero Kind; a zero Value is not a valid value.
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInteger
	KindFloat
	KindString
	KindSequence
	KindMapping
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindNull:     "null",
	KindBool:     "bool",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindSequence: "sequence",
	KindMapping:  "mapping",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one decoded record or sub-value.
type Value struct {
	kind     Kind
	b        bool
	i        int64
	u        uint64
	unsigned bool
	f        float64
	s        string
	seq      []Value
	m        Mapping
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a signed integer value.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Uint returns an integer value decoded as an unsigned 64-bit quantity.
func Uint(u uint64) Value {
	return Value{kind: KindInteger, u: u, i: int64(u), unsigned: true}
}

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Seq returns a sequence value. The slice is copied.
func Seq(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSequence, seq: cp}
}

// Map returns a mapping value.
func Map(m Mapping) Value { return Value{kind: KindMapping, m: m} }

// Kind returns the member of the union held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt64 returns the integer payload as a signed 64-bit number. Unsigned
// integers are reinterpreted two's-complement.
func (v Value) AsInt64() (int64, bool) { return v.i, v.kind == KindInteger }

// AsUint64 returns the payload of an integer decoded as unsigned.
func (v Value) AsUint64() (uint64, bool) { return v.u, v.kind == KindInteger && v.unsigned }

// AsFloat returns the float payload.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Items returns a copy of the sequence payload.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	cp := make([]Value, len(v.seq))
	copy(cp, v.seq)
	return cp, true
}

// AsMapping returns the mapping payload.
func (v Value) AsMapping() (Mapping, bool) { return v.m, v.kind == KindMapping }

// Equal reports whether v and o hold the same value. Mapping comparison
// ignores field order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindInvalid, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInteger:
		if v.isLargeUnsigned() || o.isLargeUnsigned() {
			return v.unsigned && o.unsigned && v.u == o.u
		}
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return v.m.Equal(o.m)
	}
	return false
}

func (v Value) isLargeUnsigned() bool {
	return v.unsigned && v.u > math.MaxInt64
}

// String renders v in a JSON-like notation for logs and test output.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInteger:
		if v.unsigned {
			sb.WriteString(strconv.FormatUint(v.u, 10))
		} else {
			sb.WriteString(strconv.FormatInt(v.i, 10))
		}
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindSequence:
		sb.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	case KindMapping:
		sb.WriteByte('{')
		for i, f := range v.m.fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(f.Name))
			sb.WriteByte(':')
			f.Value.write(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("<invalid>")
	}
}

// Field is one named entry of a Mapping.
type Field struct {
	Name  string
	Value Value
}

// Mapping is an ordered set of uniquely named fields.
type Mapping struct {
	fields []Field
	index  map[string]int
}

// Record is one logical row: a top-level mapping from column name to value.
type Record = Mapping

// NewMapping builds a mapping that enumerates fields in the given order.
// A repeated name keeps its first position and takes the last value.
func NewMapping(fields ...Field) Mapping {
	m := Mapping{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if i, ok := m.index[f.Name]; ok {
			m.fields[i].Value = f.Value
			continue
		}
		m.index[f.Name] = len(m.fields)
		m.fields = append(m.fields, f)
	}
	return m
}

// MappingFromMap builds a mapping from an unordered Go map. Fields are
// enumerated in ascending name order.
func MappingFromMap(src map[string]Value) Mapping {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Value: src[name]}
	}
	return NewMapping(fields...)
}

// Len returns the number of fields.
func (m Mapping) Len() int { return len(m.fields) }

// Names returns the field names in enumeration order.
func (m Mapping) Names() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the fields in enumeration order.
func (m Mapping) Fields() []Field {
	cp := make([]Field, len(m.fields))
	copy(cp, m.fields)
	return cp
}

// Get returns the value stored under name.
func (m Mapping) Get(name string) (Value, bool) {
	i, ok := m.index[name]
	if !ok {
		return Value{}, false
	}
	return m.fields[i].Value, true
}

// Has reports whether name is a field of m.
func (m Mapping) Has(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Equal compares two mappings field by field, ignoring order.
func (m Mapping) Equal(o Mapping) bool {
	if len(m.fields) != len(o.fields) {
		return false
	}
	for _, f := range m.fields {
		other, ok := o.Get(f.Name)
		if !ok || !f.Value.Equal(other) {
			return false
		}
	}
	return true
}

// String renders the mapping like a JSON object.
func (m Mapping) String() string { return Map(m).String() }
