// Package source reads records from a line-oriented file on the local disk
// or in object storage.
//
// A Source is single-pass: records come out in file order and the stream
// cannot be rewound. End of stream is reported as io.EOF.
package source

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/value"
)

// DefaultMaxLineBytes is the longest line a source accepts unless configured.
const DefaultMaxLineBytes = 16 << 20

// Options configures Open.
type Options struct {
	Path          string
	Format        Format
	Compression   Compression
	MaxLineBytes  int
	CSVInferTypes bool
	S3            S3Options
	GCS           GCSOptions
	Logger        *zap.Logger
}

// Source produces records one at a time or in batches.
type Source interface {
	// NextRecord returns the next record, or io.EOF at end of stream.
	NextRecord(ctx context.Context) (value.Record, error)
	// NextBatch collects up to maxSize records. It returns io.EOF only when
	// no record was left; the final batch may be short.
	NextBatch(ctx context.Context, maxSize int) (*Batch, error)
	Close() error
}

type lineSource struct {
	mu      sync.Mutex
	path    string
	rc      io.ReadCloser
	scanner *bufio.Scanner
	decoder lineDecoder
	line    int
	done    bool

	batchID atomic.Uint64
	logger  *zap.Logger
}

// Open resolves opts.Path, wraps it in the configured decompressor and
// prepares the decoder. For CSV the header line is read here.
func Open(ctx context.Context, opts Options) (Source, error) {
	if opts.Path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "source path is required")
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}

	raw, err := openLocation(ctx, opts.Path, opts)
	if err != nil {
		return nil, err
	}

	compression := DetectCompression(opts.Path, opts.Compression)
	rc, err := decompress(raw, compression)
	if err != nil {
		return nil, err
	}

	return newLineSource(rc, opts, compression)
}

// NewReaderSource builds a Source over an already opened stream. The stream
// is read as-is, no decompression is applied.
func NewReaderSource(rc io.ReadCloser, opts Options) (Source, error) {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return newLineSource(rc, opts, CompressionNone)
}

func newLineSource(rc io.ReadCloser, opts Options, compression Compression) (*lineSource, error) {
	scanner := bufio.NewScanner(rc)
	initial := 64 * 1024
	if initial > opts.MaxLineBytes {
		initial = opts.MaxLineBytes
	}
	scanner.Buffer(make([]byte, 0, initial), opts.MaxLineBytes)

	s := &lineSource{
		path:    opts.Path,
		rc:      rc,
		scanner: scanner,
		logger:  opts.Logger.With(zap.String("source", opts.Path)),
	}

	switch opts.Format {
	case FormatJSON:
		s.decoder = jsonLinesDecoder{}

	case FormatCSV:
		header, err := s.nextLine()
		if err == io.EOF {
			// An empty file has no header and no records.
			s.done = true
			break
		}
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		dec, err := newCSVDecoder(header, opts.CSVInferTypes)
		if err != nil {
			_ = rc.Close()
			return nil, s.decodeError(err)
		}
		s.decoder = dec

	default:
		_ = rc.Close()
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported source file type %q", opts.Format)
	}

	s.logger.Debug("source opened",
		zap.String("format", string(opts.Format)),
		zap.String("compression", string(compression)),
		zap.Int("max_line_bytes", opts.MaxLineBytes))

	return s, nil
}

// nextLine returns the next non-blank line. Caller holds mu.
func (s *lineSource) nextLine() (string, error) {
	for s.scanner.Scan() {
		s.line++
		line := strings.TrimSuffix(s.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSource, "failed to read source").
			WithDetail("source_path", s.path).
			WithDetail("line", s.line+1)
	}
	return "", io.EOF
}

func (s *lineSource) decodeError(err error) error {
	return errors.Wrap(err, errors.ErrorTypeDecode, "failed to decode record").
		WithDetail("source_path", s.path).
		WithDetail("line", s.line)
}

func (s *lineSource) NextRecord(ctx context.Context) (value.Record, error) {
	if err := ctx.Err(); err != nil {
		return value.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nextRecordLocked()
}

func (s *lineSource) nextRecordLocked() (value.Record, error) {
	if s.done {
		return value.Record{}, io.EOF
	}

	line, err := s.nextLine()
	if err != nil {
		if err == io.EOF {
			s.done = true
		}
		return value.Record{}, err
	}

	rec, err := s.decoder.decode(line)
	if err != nil {
		return value.Record{}, s.decodeError(err)
	}
	return rec, nil
}

func (s *lineSource) NextBatch(ctx context.Context, maxSize int) (*Batch, error) {
	if maxSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "batch size must be positive, got %d", maxSize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]value.Record, 0, maxSize)
	for len(records) < maxSize {
		rec, err := s.nextRecordLocked()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, io.EOF
	}

	return &Batch{ID: s.batchID.Add(1), Records: records}, nil
}

func (s *lineSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = true
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	s.rc = nil
	return err
}
