package pipeline

import (
	"context"
	"io"

	"github.com/ajitpratap0/cqlload/pkg/metrics"
	"github.com/ajitpratap0/cqlload/pkg/source"
)

// BatchSource is the part of source.Source the Assembler pulls from.
type BatchSource interface {
	NextBatch(ctx context.Context, maxSize int) (*source.Batch, error)
}

// Assembler pulls fixed-size batches from a source. Once the source reports
// io.EOF every later call returns io.EOF without touching the source.
// It is not safe for concurrent use.
type Assembler struct {
	src       BatchSource
	batchSize int
	metrics   *metrics.Collector

	done    bool
	batches int64
	records int64
}

// NewAssembler returns an Assembler producing batches of at most batchSize.
func NewAssembler(src BatchSource, batchSize int, collector *metrics.Collector) *Assembler {
	return &Assembler{src: src, batchSize: batchSize, metrics: collector}
}

// Next returns the next batch or io.EOF.
func (a *Assembler) Next(ctx context.Context) (*source.Batch, error) {
	if a.done {
		return nil, io.EOF
	}

	b, err := a.src.NextBatch(ctx, a.batchSize)
	if err == io.EOF {
		a.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	a.batches++
	a.records += int64(b.Len())
	a.metrics.RecordsRead(b.Len())
	return b, nil
}

// Batches returns the number of batches pulled so far.
func (a *Assembler) Batches() int64 { return a.batches }

// Records returns the number of records pulled so far.
func (a *Assembler) Records() int64 { return a.records }
