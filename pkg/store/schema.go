package store

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/value"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used unquoted as a keyspace,
// table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Schema is the column list of the run and the insert statement built
// from it. It never changes once derived.
type Schema struct {
	Keyspace  string
	Table     string
	Fields    []string
	Statement string

	index map[string]int
}

// DeriveSchema builds the schema from the field order of rec.
func DeriveSchema(keyspace, table string, rec value.Record) (*Schema, error) {
	if rec.Len() == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "cannot derive schema from a record without fields")
	}

	fields := rec.Names()
	index := make(map[string]int, len(fields))
	for i, name := range fields {
		if !ValidIdentifier(name) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "field %q is not a valid column name", name)
		}
		index[name] = i
	}

	return &Schema{
		Keyspace:  keyspace,
		Table:     table,
		Fields:    fields,
		Statement: BuildInsert(keyspace, table, fields),
		index:     index,
	}, nil
}

// BuildInsert renders the named-marker insert statement for fields.
func BuildInsert(keyspace, table string, fields []string) string {
	markers := make([]string, len(fields))
	for i, f := range fields {
		markers[i] = ":" + f
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(keyspace)
	sb.WriteByte('.')
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(fields, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(markers, ", "))
	sb.WriteByte(')')
	return sb.String()
}

// Matches reports whether rec has exactly the schema's field set.
func (s *Schema) Matches(rec value.Record) bool {
	if rec.Len() != len(s.Fields) {
		return false
	}
	for _, name := range rec.Names() {
		if _, ok := s.index[name]; !ok {
			return false
		}
	}
	return true
}

// Bind converts rec into positional arguments in schema order. Null fields
// bind as value.Unset.
func (s *Schema) Bind(rec value.Record) ([]interface{}, error) {
	if !s.Matches(rec) {
		return nil, errors.New(errors.ErrorTypeSchema, "record fields do not match schema").
			WithDetail("expected", s.Fields).
			WithDetail("actual", rec.Names())
	}

	args := make([]interface{}, len(s.Fields))
	for i, name := range s.Fields {
		v, _ := rec.Get(name)
		b, err := value.ToColumnBinding(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConversion, "cannot bind field").
				WithDetail("field", name)
		}
		args[i] = b
	}
	return args, nil
}

// schemaCell holds the schema of the run. The first successful derivation
// is published and every later caller sees the same pointer.
type schemaCell struct {
	mu     sync.Mutex
	schema atomic.Pointer[Schema]
}

func (c *schemaCell) get() *Schema {
	return c.schema.Load()
}

func (c *schemaCell) getOrDerive(derive func() (*Schema, error)) (*Schema, error) {
	if s := c.schema.Load(); s != nil {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.schema.Load(); s != nil {
		return s, nil
	}

	s, err := derive()
	if err != nil {
		return nil, err
	}
	c.schema.Store(s)
	return s, nil
}
