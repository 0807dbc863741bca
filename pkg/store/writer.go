// Package store writes record batches to a CQL table.
//
// The Writer derives the column list once, from the first record it sees,
// and sends every batch as one server-side batch of the same insert
// statement. Null fields are left unset so existing column values survive.
package store

import (
	"context"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/value"
)

// WriterConfig names the target table.
type WriterConfig struct {
	Keyspace string
	Table    string
}

// Writer inserts batches through a Session.
type Writer struct {
	session  Session
	keyspace string
	table    string
	cell     schemaCell
	logger   *zap.Logger
}

// NewWriter returns a Writer for cfg.Keyspace.cfg.Table.
func NewWriter(session Session, cfg WriterConfig, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !ValidIdentifier(cfg.Keyspace) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid keyspace name %q", cfg.Keyspace)
	}
	if !ValidIdentifier(cfg.Table) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid table name %q", cfg.Table)
	}

	return &Writer{
		session:  session,
		keyspace: cfg.Keyspace,
		table:    cfg.Table,
		logger:   logger.With(zap.String("table", cfg.Keyspace+"."+cfg.Table)),
	}, nil
}

// Schema returns the published schema, or nil before the first successful
// EnsureSchema.
func (w *Writer) Schema() *Schema {
	return w.cell.get()
}

// EnsureSchema returns the schema of the run, deriving it from the first
// record of records if none has been published yet. An empty batch never
// derives a schema.
func (w *Writer) EnsureSchema(records []value.Record) (*Schema, error) {
	if s := w.cell.get(); s != nil {
		return s, nil
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "no record to derive the schema from")
	}

	return w.cell.getOrDerive(func() (*Schema, error) {
		s, err := DeriveSchema(w.keyspace, w.table, records[0])
		if err != nil {
			return nil, err
		}
		w.logger.Info("schema derived",
			zap.Strings("fields", s.Fields),
			zap.String("statement", s.Statement))
		return s, nil
	})
}

// InsertBatch converts records and sends them as one batch. If any record
// does not match the schema or cannot be bound, nothing is sent.
func (w *Writer) InsertBatch(ctx context.Context, records []value.Record) error {
	if len(records) == 0 {
		return nil
	}

	s, err := w.EnsureSchema(records)
	if err != nil {
		return err
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		args, err := s.Bind(rec)
		if err != nil {
			var e *errors.Error
			if errors.As(err, &e) {
				e.WithDetail("record", i)
			}
			return err
		}
		for j, a := range args {
			if value.IsUnset(a) {
				args[j] = gocql.UnsetValue
			}
		}
		rows[i] = args
	}

	if err := w.session.ExecuteBatch(ctx, s.Statement, rows); err != nil {
		if errors.IsType(err, errors.ErrorTypeWrite) {
			return err
		}
		return errors.Wrap(err, errors.ErrorTypeWrite, "batch execution failed")
	}
	return nil
}
