package source

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// GCSOptions configures access to gs:// sources.
type GCSOptions struct {
	Endpoint        string
	CredentialsFile string
}

// gcsObjectReader closes the storage client together with the object reader.
type gcsObjectReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsObjectReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCSObject(ctx context.Context, uri ObjectURI, o GCSOptions) (io.ReadCloser, error) {
	var opts []option.ClientOption
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	r, err := client.Bucket(uri.Bucket).Object(uri.Key).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open object").
			WithDetail("bucket", uri.Bucket).
			WithDetail("key", uri.Key)
	}

	return &gcsObjectReader{Reader: r, client: client}, nil
}
