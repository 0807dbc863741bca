package source

import (
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// Compression selects the decompressor applied to the source byte stream.
type Compression string

const (
	// CompressionAuto picks a decompressor from the file extension
	CompressionAuto Compression = "auto"
	// CompressionNone reads the stream as-is
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
	CompressionLZ4    Compression = "lz4"
	CompressionSnappy Compression = "snappy"
	CompressionS2     Compression = "s2"
)

var compressionByExt = map[string]Compression{
	".gz":     CompressionGzip,
	".gzip":   CompressionGzip,
	".zst":    CompressionZstd,
	".zstd":   CompressionZstd,
	".lz4":    CompressionLZ4,
	".sz":     CompressionSnappy,
	".snappy": CompressionSnappy,
	".s2":     CompressionS2,
}

// ParseCompression validates a compression name. The empty string means auto.
func ParseCompression(s string) (Compression, error) {
	c := Compression(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case "":
		return CompressionAuto, nil
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionZstd,
		CompressionLZ4, CompressionSnappy, CompressionS2:
		return c, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", s)
}

// DetectCompression resolves auto against the extension of name.
func DetectCompression(name string, c Compression) Compression {
	if c != CompressionAuto && c != "" {
		return c
	}
	if found, ok := compressionByExt[strings.ToLower(path.Ext(name))]; ok {
		return found
	}
	return CompressionNone
}

// decompressedReader reads through a decompressor and closes both layers.
type decompressedReader struct {
	io.Reader
	closers []func() error
}

func (r *decompressedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func decompress(rc io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone, "":
		return rc, nil

	case CompressionGzip:
		gz, err := gzip.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open gzip stream")
		}
		return &decompressedReader{Reader: gz, closers: []func() error{gz.Close, rc.Close}}, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open zstd stream")
		}
		return &decompressedReader{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			rc.Close,
		}}, nil

	case CompressionLZ4:
		return &decompressedReader{Reader: lz4.NewReader(rc), closers: []func() error{rc.Close}}, nil

	case CompressionSnappy:
		return &decompressedReader{Reader: snappy.NewReader(rc), closers: []func() error{rc.Close}}, nil

	case CompressionS2:
		return &decompressedReader{Reader: s2.NewReader(rc), closers: []func() error{rc.Close}}, nil
	}

	_ = rc.Close()
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", c)
}
