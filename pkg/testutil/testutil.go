// Package testutil provides testing utilities for cqlload
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger returns a logger writing to t's output at debug level.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// UserRow is one row of the fixture data written by CreateJSONLines and
// CreateCSV.
func UserRow(i int) (id int, name string, score float64, active bool) {
	return i, fmt.Sprintf("user_%d", i), float64(i) * 1.5, i%2 == 0
}

// CreateJSONLines writes n fixture rows as JSON lines and returns the path.
func CreateJSONLines(t *testing.T, dir, name string, n int) string {
	t.Helper()

	var sb strings.Builder
	for i := 0; i < n; i++ {
		id, user, score, active := UserRow(i)
		fmt.Fprintf(&sb, `{"id":%d,"name":%q,"score":%g,"active":%t}`+"\n", id, user, score, active)
	}
	return writeFile(t, dir, name, sb.String())
}

// CreateCSV writes n fixture rows as CSV with a header and returns the path.
func CreateCSV(t *testing.T, dir, name string, n int) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("active,id,name,score\n")
	for i := 0; i < n; i++ {
		id, user, score, active := UserRow(i)
		fmt.Fprintf(&sb, "%t,%d,%s,%g\n", active, id, user, score)
	}
	return writeFile(t, dir, name, sb.String())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
