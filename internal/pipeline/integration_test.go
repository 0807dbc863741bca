package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/cqlload/internal/pipeline"
	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/metrics"
	"github.com/ajitpratap0/cqlload/pkg/source"
	"github.com/ajitpratap0/cqlload/pkg/store"
	"github.com/ajitpratap0/cqlload/pkg/testutil"
)

type LoadSuite struct {
	testutil.IntegrationTestSuite
}

func TestLoadSuite(t *testing.T) {
	suite.Run(t, new(LoadSuite))
}

func (s *LoadSuite) load(opts source.Options, session store.Session, cfg pipeline.Config) (pipeline.Summary, error) {
	logger := testutil.TestLogger(s.T())
	opts.Logger = logger

	src, err := source.Open(s.Context(), opts)
	s.Require().NoError(err)
	defer src.Close()

	writer, err := store.NewWriter(session, store.WriterConfig{Keyspace: "app", Table: "users"}, logger)
	s.Require().NoError(err)

	up, err := pipeline.NewUploader(src, writer, cfg, metrics.NewCollector(prometheus.NewRegistry()), logger)
	s.Require().NoError(err)

	return up.Run(s.Context())
}

func (s *LoadSuite) TestJSONAndCSVLoadTheSameRows() {
	const n = 57
	jsonPath := testutil.CreateJSONLines(s.T(), s.TempDir(), "users.json", n)
	csvPath := testutil.CreateCSV(s.T(), s.TempDir(), "users.csv", n)

	fromJSON := testutil.NewMemorySession("id")
	summary, err := s.load(source.Options{Path: jsonPath, Format: source.FormatJSON}, fromJSON,
		pipeline.Config{BatchSize: 10, ConcurrentBatches: 3})
	s.Require().NoError(err)
	s.Equal(int64(6), summary.BatchesSucceeded)

	fromCSV := testutil.NewMemorySession("id")
	_, err = s.load(source.Options{Path: csvPath, Format: source.FormatCSV, CSVInferTypes: true}, fromCSV,
		pipeline.Config{BatchSize: 10, ConcurrentBatches: 3})
	s.Require().NoError(err)

	s.Equal(n, fromJSON.Len())
	s.Equal(n, fromCSV.Len())
	for i := 0; i < n; i++ {
		a, ok := fromJSON.Row(int64(i))
		s.Require().True(ok)
		b, ok := fromCSV.Row(int64(i))
		s.Require().True(ok)
		s.Equal(a, b, "row %d", i)
	}

	row, _ := fromJSON.Row(int64(3))
	s.Equal("user_3", row["name"])
	s.Equal(4.5, row["score"])
	s.Equal(false, row["active"])
}

func (s *LoadSuite) TestGzipSource() {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	for i := 0; i < 20; i++ {
		fmt.Fprintf(gw, `{"id":%d,"tags":["a","b"],"attrs":{"k":"v"}}`+"\n", i)
	}
	s.Require().NoError(gw.Close())
	path := s.CreateTempFile("users.json.gz", buf.Bytes())

	session := testutil.NewMemorySession("id")
	summary, err := s.load(source.Options{Path: path}, session, pipeline.Config{BatchSize: 7, ConcurrentBatches: 2})
	s.Require().NoError(err)
	s.Equal(int64(3), summary.BatchesSucceeded)
	s.Equal(20, session.Len())

	row, _ := session.Row(int64(19))
	s.Equal([]interface{}{"a", "b"}, row["tags"])
	s.Equal(map[string]interface{}{"k": "v"}, row["attrs"])
}

func (s *LoadSuite) TestNullKeepsStoredValue() {
	first := s.CreateTempFile("first.json", []byte(`{"id":1,"name":"alice","email":"a@example.com"}`+"\n"))
	second := s.CreateTempFile("second.json", []byte(`{"id":1,"name":null,"email":"alice@example.com"}`+"\n"))

	session := testutil.NewMemorySession("id")
	cfg := pipeline.Config{BatchSize: 10, ConcurrentBatches: 1}

	_, err := s.load(source.Options{Path: first}, session, cfg)
	s.Require().NoError(err)
	_, err = s.load(source.Options{Path: second}, session, cfg)
	s.Require().NoError(err)

	row, ok := session.Row(int64(1))
	s.Require().True(ok)
	s.Equal("alice", row["name"])
	s.Equal("alice@example.com", row["email"])
}

func (s *LoadSuite) TestFailingBatchIsIsolated() {
	path := testutil.CreateJSONLines(s.T(), s.TempDir(), "isolated.json", 30)

	session := testutil.NewMemorySession("id")
	session.Fail = func(_ string, rows [][]interface{}) error {
		for _, r := range rows {
			for _, v := range r {
				if v == int64(15) {
					return errors.New(errors.ErrorTypeWrite, "write timeout")
				}
			}
		}
		return nil
	}

	summary, err := s.load(source.Options{Path: path}, session, pipeline.Config{BatchSize: 10, ConcurrentBatches: 3})
	s.Require().NoError(err)
	s.Equal(int64(2), summary.BatchesSucceeded)
	s.Equal(int64(1), summary.BatchesFailed)
	s.Equal(20, session.Len())

	_, ok := session.Row(int64(15))
	s.False(ok)
	_, ok = session.Row(int64(25))
	s.True(ok)
}

func (s *LoadSuite) TestMalformedLineStopsTheRun() {
	var buf bytes.Buffer
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&buf, `{"id":%d}`+"\n", i)
	}
	buf.WriteString("{not json\n")
	for i := 10; i < 20; i++ {
		fmt.Fprintf(&buf, `{"id":%d}`+"\n", i)
	}
	path := s.CreateTempFile("broken.json", buf.Bytes())

	session := testutil.NewMemorySession("id")
	summary, err := s.load(source.Options{Path: path}, session, pipeline.Config{BatchSize: 5, ConcurrentBatches: 2})
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeDecode))
	s.True(errors.IsFatal(err))

	s.Equal(int64(2), summary.BatchesSucceeded)
	s.Equal(10, session.Len())
}

func (s *LoadSuite) TestEmptyFile() {
	path := s.CreateTempFile("empty.json", nil)
	session := testutil.NewMemorySession("id")

	summary, err := s.load(source.Options{Path: path}, session, pipeline.Config{BatchSize: 5, ConcurrentBatches: 2})
	s.Require().NoError(err)
	s.Equal(int64(0), summary.BatchesPulled)
	s.Equal(0, session.Batches())
}

func (s *LoadSuite) TestMissingFile() {
	_, err := source.Open(context.Background(), source.Options{Path: filepath.Join(s.TempDir(), "missing.json")})
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeSource))
}
