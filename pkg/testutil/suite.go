package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite runs each test with its own deadline and scratch
// directory. It is skipped under -short.
type IntegrationTestSuite struct {
	suite.Suite

	Timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
}

func (s *IntegrationTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping end-to-end load tests in short mode")
	}
	if s.Timeout == 0 {
		s.Timeout = time.Minute
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), s.Timeout)
	s.tempDir = s.T().TempDir()
}

func (s *IntegrationTestSuite) TearDownTest() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Context is cancelled when the current test ends.
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir is removed when the current test ends.
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile writes content to name inside TempDir and returns its path.
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	s.Require().NoError(os.WriteFile(path, content, 0o600))
	return path
}
