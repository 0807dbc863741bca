package source

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// Location identifies where the bytes of a source live.
type Location string

const (
	// LocationLocal is a path on the local filesystem
	LocationLocal Location = "local"
	// LocationS3 is an s3:// or s3a:// object
	LocationS3 Location = "s3"
	// LocationGCS is a gs:// object
	LocationGCS Location = "gcs"
)

var objectSchemes = map[string]Location{
	"s3":  LocationS3,
	"s3a": LocationS3,
	"gs":  LocationGCS,
}

// Classify returns the location of path. Paths with a recognised
// object-storage scheme are remote, everything else is local.
func Classify(path string) Location {
	i := strings.Index(path, "://")
	if i <= 0 {
		return LocationLocal
	}
	if loc, ok := objectSchemes[strings.ToLower(path[:i])]; ok {
		return loc
	}
	return LocationLocal
}

// ObjectURI is a parsed object-storage location.
type ObjectURI struct {
	Scheme string
	Bucket string
	Key    string
}

func (u ObjectURI) String() string {
	return u.Scheme + "://" + u.Bucket + "/" + u.Key
}

// ParseObjectURI splits an object-storage URI into bucket and key. The key is
// percent-decoded.
func ParseObjectURI(raw string) (ObjectURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ObjectURI{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid source path").
			WithDetail("source_path", raw)
	}

	if u.Host == "" {
		return ObjectURI{}, errors.New(errors.ErrorTypeConfig, "source path has no bucket").
			WithDetail("source_path", raw)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return ObjectURI{}, errors.New(errors.ErrorTypeConfig, "source path has no object key").
			WithDetail("source_path", raw)
	}

	return ObjectURI{
		Scheme: strings.ToLower(u.Scheme),
		Bucket: u.Host,
		Key:    key,
	}, nil
}

// openLocation returns the raw byte stream behind path.
func openLocation(ctx context.Context, path string, opts Options) (io.ReadCloser, error) {
	switch Classify(path) {
	case LocationS3:
		uri, err := ParseObjectURI(path)
		if err != nil {
			return nil, err
		}
		client, err := newS3Client(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return openS3Object(ctx, client, uri)

	case LocationGCS:
		uri, err := ParseObjectURI(path)
		if err != nil {
			return nil, err
		}
		return openGCSObject(ctx, uri, opts.GCS)

	default:
		f, err := os.Open(path) //nolint:gosec // G304: path is the operator supplied source
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open file").
				WithDetail("source_path", path)
		}
		return f, nil
	}
}
