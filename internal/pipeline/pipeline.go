// Package pipeline drives a load run: it pulls batches from a source one at
// a time and writes them through a bounded window of concurrent writers.
//
// # Overview
//
// An Uploader moves through Idle, Pulling, Draining and Done. While
// Pulling it admits at most ConcurrentBatches writes at once; pulling the
// next batch blocks until a slot frees. Failed writes are logged and
// counted but never stop the run. Errors on the read path stop pulling,
// let the writes already in flight finish, and end the run with the error.
//
// # Basic Usage
//
//	src, _ := source.Open(ctx, source.Options{Path: "data.json"})
//	writer, _ := store.NewWriter(session, store.WriterConfig{Keyspace: "ks", Table: "t"}, logger)
//	up, _ := pipeline.NewUploader(src, writer, pipeline.Config{
//	    BatchSize:         500,
//	    ConcurrentBatches: 8,
//	}, collector, logger)
//	summary, err := up.Run(ctx)
package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// State is the lifecycle stage of an Uploader.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config controls batching and the write window.
type Config struct {
	BatchSize         int
	ConcurrentBatches int
	// WriteTimeout bounds each batch write; zero means no bound
	WriteTimeout time.Duration
}

// Summary is the outcome of a run.
type Summary struct {
	BatchesPulled    int64         `json:"batches_pulled"`
	BatchesSucceeded int64         `json:"batches_succeeded"`
	BatchesFailed    int64         `json:"batches_failed"`
	RecordsRead      int64         `json:"records_read"`
	RecordsWritten   int64         `json:"records_written"`
	RecordsFailed    int64         `json:"records_failed"`
	MaxInFlight      int64         `json:"max_in_flight"`
	Duration         time.Duration `json:"duration"`
}

// ThroughputRPS returns written records per second.
func (s Summary) ThroughputRPS() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.RecordsWritten) / s.Duration.Seconds()
}

// MarshalLogObject lets a Summary be logged with zap.Object.
func (s Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("batches_pulled", s.BatchesPulled)
	enc.AddInt64("batches_succeeded", s.BatchesSucceeded)
	enc.AddInt64("batches_failed", s.BatchesFailed)
	enc.AddInt64("records_read", s.RecordsRead)
	enc.AddInt64("records_written", s.RecordsWritten)
	enc.AddInt64("records_failed", s.RecordsFailed)
	enc.AddInt64("max_in_flight", s.MaxInFlight)
	enc.AddDuration("duration", s.Duration)
	enc.AddFloat64("throughput_rps", s.ThroughputRPS())
	return nil
}

var _ zapcore.ObjectMarshaler = Summary{}

func summaryField(s Summary) zap.Field {
	return zap.Object("summary", s)
}
