package source

import (
	"encoding/csv"
	"strings"

	jsoncodec "github.com/ajitpratap0/cqlload/pkg/json"
	"github.com/ajitpratap0/cqlload/pkg/errors"
	"github.com/ajitpratap0/cqlload/pkg/value"
)

// Format is the encoding of the source lines.
type Format string

const (
	// FormatJSON is line-delimited JSON: one object per line
	FormatJSON Format = "json"
	// FormatCSV is a header row followed by comma-separated data rows
	FormatCSV Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, "jsonl", "ndjson":
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported source file type %q", s)
}

// lineDecoder turns one source line into a record.
type lineDecoder interface {
	decode(line string) (value.Record, error)
}

type jsonLinesDecoder struct{}

func (jsonLinesDecoder) decode(line string) (value.Record, error) {
	raw, err := jsoncodec.DecodeValue([]byte(line))
	if err != nil {
		return value.Record{}, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON line")
	}

	v, err := value.FromInterface(raw)
	if err != nil {
		return value.Record{}, errors.Wrap(err, errors.ErrorTypeDecode, "invalid JSON line")
	}

	rec, ok := v.AsMapping()
	if !ok {
		return value.Record{}, errors.Newf(errors.ErrorTypeDecode, "JSON line is a %s, not an object", v.Kind())
	}
	return rec, nil
}

// csvDecoder decodes each data line by parsing it together with the header
// line captured when the source was opened. Only one row is ever held.
type csvDecoder struct {
	header     string
	columns    []string
	inferTypes bool
}

func newCSVDecoder(header string, inferTypes bool) (*csvDecoder, error) {
	r := csv.NewReader(strings.NewReader(header))
	columns, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "invalid CSV header")
	}

	return &csvDecoder{
		header:     header,
		columns:    columns,
		inferTypes: inferTypes,
	}, nil
}

func (d *csvDecoder) decode(line string) (value.Record, error) {
	r := csv.NewReader(strings.NewReader(d.header + "\n" + line))
	if _, err := r.Read(); err != nil {
		return value.Record{}, errors.Wrap(err, errors.ErrorTypeDecode, "invalid CSV header")
	}

	row, err := r.Read()
	if err != nil {
		return value.Record{}, errors.Wrap(err, errors.ErrorTypeDecode, "invalid CSV row")
	}

	fields := make([]value.Field, len(d.columns))
	for i, name := range d.columns {
		v := value.String(row[i])
		if d.inferTypes {
			v = value.InferScalar(row[i])
		}
		fields[i] = value.Field{Name: name, Value: v}
	}
	return value.NewMapping(fields...), nil
}
