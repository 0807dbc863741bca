package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gocql/gocql"
)

var insertColumns = regexp.MustCompile(`^INSERT INTO \S+ \(([^)]*)\) VALUES`)

// MemorySession is an in-memory store.Session. It parses the column list of
// the insert statement and upserts every row into a table keyed by the
// KeyColumn value. Unset columns keep their stored value, like a real
// CQL upsert.
type MemorySession struct {
	KeyColumn string
	// Fail, when set, is returned by ExecuteBatch for the batch it selects
	Fail func(stmt string, rows [][]interface{}) error

	mu      sync.Mutex
	rows    map[interface{}]map[string]interface{}
	batches int
}

// NewMemorySession returns an empty table keyed by keyColumn.
func NewMemorySession(keyColumn string) *MemorySession {
	return &MemorySession{KeyColumn: keyColumn, rows: make(map[interface{}]map[string]interface{})}
}

func (s *MemorySession) ExecuteBatch(_ context.Context, stmt string, rows [][]interface{}) error {
	if s.Fail != nil {
		if err := s.Fail(stmt, rows); err != nil {
			return err
		}
	}

	m := insertColumns.FindStringSubmatch(stmt)
	if m == nil {
		return fmt.Errorf("unsupported statement %q", stmt)
	}
	columns := strings.Split(m[1], ", ")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches++
	for _, args := range rows {
		var key interface{}
		for i, c := range columns {
			if c == s.KeyColumn {
				key = args[i]
			}
		}

		row, ok := s.rows[key]
		if !ok {
			row = make(map[string]interface{})
			s.rows[key] = row
		}
		for i, c := range columns {
			if args[i] == gocql.UnsetValue {
				continue
			}
			row[c] = args[i]
		}
	}
	return nil
}

func (s *MemorySession) Close() {}

// Row returns a copy of the stored row with the given key.
func (s *MemorySession) Row(key interface{}) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok {
		return nil, false
	}
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, true
}

// Len returns the number of stored rows.
func (s *MemorySession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Batches returns the number of batches executed.
func (s *MemorySession) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}
