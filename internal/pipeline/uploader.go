package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/metrics"
	"github.com/ajitpratap0/cqlload/pkg/observability"
	"github.com/ajitpratap0/cqlload/pkg/source"
	"github.com/ajitpratap0/cqlload/pkg/store"
	"github.com/ajitpratap0/cqlload/pkg/value"
)

// BatchWriter is the part of store.Writer the Uploader drives.
type BatchWriter interface {
	EnsureSchema(records []value.Record) (*store.Schema, error)
	InsertBatch(ctx context.Context, records []value.Record) error
}

// Uploader runs one load from a source into a writer.
type Uploader struct {
	assembler *Assembler
	writer    BatchWriter
	cfg       Config
	metrics   *metrics.Collector
	logger    *zap.Logger

	state       atomic.Int32
	uploaded    atomic.Int64
	failed      atomic.Int64
	written     atomic.Int64
	lost        atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// NewUploader validates cfg and returns an idle Uploader.
func NewUploader(src BatchSource, writer BatchWriter, cfg Config, collector *metrics.Collector, logger *zap.Logger) (*Uploader, error) {
	if cfg.BatchSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.ConcurrentBatches <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "concurrent batches must be positive, got %d", cfg.ConcurrentBatches)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Uploader{
		assembler: NewAssembler(src, cfg.BatchSize, collector),
		writer:    writer,
		cfg:       cfg,
		metrics:   collector,
		logger:    logger,
	}, nil
}

// State returns the current lifecycle stage.
func (u *Uploader) State() State {
	return State(u.state.Load())
}

// InFlight returns the number of batch writes currently running.
func (u *Uploader) InFlight() int64 {
	return u.inFlight.Load()
}

// Run pulls every batch from the source and writes it. It returns after all
// admitted writes have finished. The error is non-nil only when the read
// path failed or ctx was cancelled; failed writes are reported in the
// Summary.
func (u *Uploader) Run(ctx context.Context) (Summary, error) {
	if !u.state.CompareAndSwap(int32(StateIdle), int32(StatePulling)) {
		return Summary{}, errors.New(errors.ErrorTypeInternal, "uploader has already run")
	}

	start := time.Now()
	u.logger.Info("starting upload",
		zap.Int("batch_size", u.cfg.BatchSize),
		zap.Int("concurrent_batches", u.cfg.ConcurrentBatches),
		zap.Duration("write_timeout", u.cfg.WriteTimeout))

	var g errgroup.Group
	g.SetLimit(u.cfg.ConcurrentBatches)

	readErr := u.pull(ctx, &g)

	u.state.Store(int32(StateDraining))
	u.logger.Debug("draining in-flight writes", zap.Int64("in_flight", u.inFlight.Load()))
	_ = g.Wait()
	u.state.Store(int32(StateDone))

	summary := Summary{
		BatchesPulled:    u.assembler.Batches(),
		BatchesSucceeded: u.uploaded.Load(),
		BatchesFailed:    u.failed.Load(),
		RecordsRead:      u.assembler.Records(),
		RecordsWritten:   u.written.Load(),
		RecordsFailed:    u.lost.Load(),
		MaxInFlight:      u.maxInFlight.Load(),
		Duration:         time.Since(start),
	}

	if readErr != nil {
		u.logger.Error("upload aborted", zap.Error(readErr), summaryField(summary))
		return summary, readErr
	}

	u.logger.Info("upload completed", summaryField(summary))
	return summary, nil
}

// pull admits batches into g until the source is exhausted or fails.
func (u *Uploader) pull(ctx context.Context, g *errgroup.Group) error {
	for {
		batch, err := u.assembler.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		u.logger.Debug("batch pulled",
			zap.Uint64("batch_id", batch.ID),
			zap.Int("size", batch.Len()))

		// The schema is fixed here, before any write starts, so the first
		// batch pulled always defines it.
		if _, err := u.writer.EnsureSchema(batch.Records); err != nil {
			u.metrics.BatchStarted()(batch.Len(), err)
			u.batchFailed(batch, err)
			continue
		}

		// Go blocks while the window is full.
		g.Go(func() error {
			u.write(ctx, batch)
			return nil
		})
	}
}

func (u *Uploader) write(ctx context.Context, batch *source.Batch) {
	n := u.inFlight.Add(1)
	defer u.inFlight.Add(-1)
	for {
		m := u.maxInFlight.Load()
		if n <= m || u.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if u.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.WriteTimeout)
		defer cancel()
	}

	done := u.metrics.BatchStarted()
	err := observability.TraceBatch(ctx, batch.ID, batch.Len(), func(ctx context.Context) error {
		return u.writer.InsertBatch(ctx, batch.Records)
	})
	done(batch.Len(), err)

	if err != nil {
		u.batchFailed(batch, err)
		return
	}

	count := u.uploaded.Add(1)
	u.written.Add(int64(batch.Len()))
	u.logger.Info("batch uploaded",
		zap.Int64("batches_uploaded", count),
		zap.Uint64("batch_id", batch.ID),
		zap.Int("size", batch.Len()))
}

func (u *Uploader) batchFailed(batch *source.Batch, err error) {
	u.failed.Add(1)
	u.lost.Add(int64(batch.Len()))
	fields := []zap.Field{
		zap.Uint64("batch_id", batch.ID),
		zap.Int("size", batch.Len()),
		zap.Error(err),
	}
	var e *errors.Error
	if errors.As(err, &e) {
		fields = append(fields, zap.Object("error_detail", e))
	}
	u.logger.Error("batch failed", fields...)
}
