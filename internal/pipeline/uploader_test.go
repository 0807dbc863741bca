package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/metrics"
	"github.com/ajitpratap0/cqlload/pkg/source"
	"github.com/ajitpratap0/cqlload/pkg/store"
	"github.com/ajitpratap0/cqlload/pkg/value"
)

// sliceSource serves records in batches and optionally fails after
// failAfter batches.
type sliceSource struct {
	mu        sync.Mutex
	records   []value.Record
	pos       int
	nextID    uint64
	failAfter int
	failErr   error
	calls     int
}

func newSliceSource(n int) *sliceSource {
	records := make([]value.Record, n)
	for i := range records {
		records[i] = value.NewMapping(
			value.Field{Name: "id", Value: value.Int(int64(i))},
			value.Field{Name: "name", Value: value.String(fmt.Sprintf("user-%d", i))},
		)
	}
	return &sliceSource{records: records, failAfter: -1}
}

func (s *sliceSource) NextBatch(_ context.Context, maxSize int) (*source.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.failAfter >= 0 && int(s.nextID) == s.failAfter {
		return nil, s.failErr
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}

	end := s.pos + maxSize
	if end > len(s.records) {
		end = len(s.records)
	}
	s.nextID++
	b := &source.Batch{ID: s.nextID, Records: s.records[s.pos:end]}
	s.pos = end
	return b, nil
}

// fakeWriter records writes and tracks how many run at once.
type fakeWriter struct {
	delay     time.Duration
	failIDs   map[int64]bool
	block     bool
	schemaErr error

	mu          sync.Mutex
	written     map[int64]int
	current     int64
	maxCurrent  int64
	schemaCalls int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{failIDs: map[int64]bool{}, written: map[int64]int{}}
}

func (w *fakeWriter) EnsureSchema(records []value.Record) (*store.Schema, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schemaCalls++
	if w.schemaErr != nil {
		return nil, w.schemaErr
	}
	return store.DeriveSchema("ks", "t", records[0])
}

func (w *fakeWriter) InsertBatch(ctx context.Context, records []value.Record) error {
	n := atomic.AddInt64(&w.current, 1)
	defer atomic.AddInt64(&w.current, -1)

	w.mu.Lock()
	if n > w.maxCurrent {
		w.maxCurrent = n
	}
	w.mu.Unlock()

	if w.block {
		<-ctx.Done()
		return errors.Wrap(ctx.Err(), errors.ErrorTypeWrite, "write cancelled")
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	first, _ := records[0].Get("id")
	id, _ := first.AsInt64()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failIDs[id] {
		return errors.New(errors.ErrorTypeWrite, "write timeout")
	}
	w.written[id] = len(records)
	return nil
}

func newTestUploader(t *testing.T, src BatchSource, w BatchWriter, cfg Config) *Uploader {
	t.Helper()
	u, err := NewUploader(src, w, cfg, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)
	return u
}

func TestUploader_WritesEveryBatch(t *testing.T) {
	tests := []struct {
		records, batchSize, window int
		batches                    int64
	}{
		{records: 100, batchSize: 10, window: 3, batches: 10},
		{records: 101, batchSize: 10, window: 3, batches: 11},
		{records: 7, batchSize: 50, window: 1, batches: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.records, tt.batchSize, tt.window), func(t *testing.T) {
			w := newFakeWriter()
			u := newTestUploader(t, newSliceSource(tt.records), w, Config{
				BatchSize:         tt.batchSize,
				ConcurrentBatches: tt.window,
			})

			summary, err := u.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.batches, summary.BatchesPulled)
			assert.Equal(t, tt.batches, summary.BatchesSucceeded)
			assert.Equal(t, int64(0), summary.BatchesFailed)
			assert.Equal(t, int64(tt.records), summary.RecordsRead)
			assert.Equal(t, int64(tt.records), summary.RecordsWritten)
			assert.Len(t, w.written, int(tt.batches))
			assert.Equal(t, StateDone, u.State())
		})
	}
}

func TestUploader_InFlightNeverExceedsWindow(t *testing.T) {
	for _, window := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("window_%d", window), func(t *testing.T) {
			w := newFakeWriter()
			w.delay = 5 * time.Millisecond

			u := newTestUploader(t, newSliceSource(200), w, Config{BatchSize: 5, ConcurrentBatches: window})
			summary, err := u.Run(context.Background())
			require.NoError(t, err)

			assert.LessOrEqual(t, w.maxCurrent, int64(window))
			assert.LessOrEqual(t, summary.MaxInFlight, int64(window))
			assert.GreaterOrEqual(t, summary.MaxInFlight, int64(1))
			assert.Equal(t, int64(40), summary.BatchesSucceeded)
			assert.Equal(t, int64(0), u.InFlight())
		})
	}
}

func TestUploader_FailedBatchDoesNotStopRun(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	w := newFakeWriter()
	w.failIDs[10] = true // second batch

	u, err := NewUploader(newSliceSource(30), w, Config{BatchSize: 10, ConcurrentBatches: 2},
		metrics.NewCollector(prometheus.NewRegistry()), zap.New(core))
	require.NoError(t, err)

	summary, err := u.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.BatchesPulled)
	assert.Equal(t, int64(2), summary.BatchesSucceeded)
	assert.Equal(t, int64(1), summary.BatchesFailed)
	assert.Equal(t, int64(20), summary.RecordsWritten)
	assert.Equal(t, int64(10), summary.RecordsFailed)
	assert.Contains(t, w.written, int64(0))
	assert.Contains(t, w.written, int64(20))

	failed := logs.FilterMessage("batch failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, uint64(2), failed[0].ContextMap()["batch_id"])
	assert.Len(t, logs.FilterMessage("batch uploaded").All(), 2)
}

func TestUploader_EmptySource(t *testing.T) {
	w := newFakeWriter()
	u := newTestUploader(t, newSliceSource(0), w, Config{BatchSize: 10, ConcurrentBatches: 4})

	summary, err := u.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.BatchesPulled)
	assert.Equal(t, 0, w.schemaCalls)
	assert.Empty(t, w.written)
}

func TestUploader_ReadErrorWaitsForInFlightWrites(t *testing.T) {
	src := newSliceSource(100)
	src.failAfter = 3
	src.failErr = errors.New(errors.ErrorTypeDecode, "invalid JSON line").WithDetail("line", 31)

	w := newFakeWriter()
	w.delay = 20 * time.Millisecond

	u := newTestUploader(t, src, w, Config{BatchSize: 10, ConcurrentBatches: 4})
	summary, err := u.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode))
	assert.Equal(t, int64(3), summary.BatchesPulled)
	assert.Equal(t, int64(3), summary.BatchesSucceeded)
	assert.Len(t, w.written, 3)
	assert.Equal(t, StateDone, u.State())

	// No further pulls after the failure.
	assert.Equal(t, 4, src.calls)
}

func TestUploader_SchemaFailureIsBatchLocal(t *testing.T) {
	w := newFakeWriter()
	w.schemaErr = errors.New(errors.ErrorTypeSchema, "field \"a b\" is not a valid column name")

	u := newTestUploader(t, newSliceSource(20), w, Config{BatchSize: 10, ConcurrentBatches: 2})
	summary, err := u.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.BatchesFailed)
	assert.Equal(t, 2, w.schemaCalls)
	assert.Empty(t, w.written)
}

func TestUploader_WriteTimeout(t *testing.T) {
	w := newFakeWriter()
	w.block = true

	u := newTestUploader(t, newSliceSource(4), w, Config{
		BatchSize:         2,
		ConcurrentBatches: 2,
		WriteTimeout:      10 * time.Millisecond,
	})

	summary, err := u.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.BatchesFailed)
	assert.Equal(t, int64(0), summary.BatchesSucceeded)
}

func TestUploader_RunsOnce(t *testing.T) {
	u := newTestUploader(t, newSliceSource(1), newFakeWriter(), Config{BatchSize: 1, ConcurrentBatches: 1})
	assert.Equal(t, StateIdle, u.State())

	_, err := u.Run(context.Background())
	require.NoError(t, err)

	_, err = u.Run(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestNewUploader_Validates(t *testing.T) {
	_, err := NewUploader(newSliceSource(1), newFakeWriter(), Config{BatchSize: 0, ConcurrentBatches: 1}, nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewUploader(newSliceSource(1), newFakeWriter(), Config{BatchSize: 1, ConcurrentBatches: 0}, nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// memSession is a store.Session keeping executed rows in memory.
type memSession struct {
	mu   sync.Mutex
	rows int
}

func (s *memSession) ExecuteBatch(_ context.Context, _ string, rows [][]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows += len(rows)
	return nil
}

func (s *memSession) Close() {}

func TestUploader_FirstBatchDefinesSchema(t *testing.T) {
	src := &sliceSource{failAfter: -1, records: []value.Record{
		value.NewMapping(value.Field{Name: "id", Value: value.Int(1)}),
		value.NewMapping(value.Field{Name: "id", Value: value.Int(2)}),
		value.NewMapping(value.Field{Name: "other", Value: value.Int(3)}),
		value.NewMapping(value.Field{Name: "other", Value: value.Int(4)}),
	}}

	session := &memSession{}
	writer, err := store.NewWriter(session, store.WriterConfig{Keyspace: "ks", Table: "t"}, zap.NewNop())
	require.NoError(t, err)

	u := newTestUploader(t, src, writer, Config{BatchSize: 2, ConcurrentBatches: 2})
	summary, err := u.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, writer.Schema().Fields)
	assert.Equal(t, int64(1), summary.BatchesSucceeded)
	assert.Equal(t, int64(1), summary.BatchesFailed)
	assert.Equal(t, 2, session.rows)
}

func TestAssembler_StickyEOF(t *testing.T) {
	src := newSliceSource(3)
	a := NewAssembler(src, 2, nil)

	b, err := a.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())

	b, err = a.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())

	for i := 0; i < 3; i++ {
		_, err = a.Next(context.Background())
		assert.Equal(t, io.EOF, err)
	}
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, int64(2), a.Batches())
	assert.Equal(t, int64(3), a.Records())
}
