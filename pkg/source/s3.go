package source

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

const defaultS3Region = "minio"

// S3Options configures access to s3:// and s3a:// sources.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// objectGetter is the part of the S3 client used to stream an object.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func newS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	region := o.Region
	if region == "" {
		region = defaultS3Region
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if o.AccessKey != "" || o.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	return s3.NewFromConfig(cfg, func(opts *s3.Options) {
		// MinIO and most S3-compatible stores only serve path-style requests.
		opts.UsePathStyle = true
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
		}
	}), nil
}

func openS3Object(ctx context.Context, client objectGetter, uri ObjectURI) (io.ReadCloser, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to get object").
			WithDetail("bucket", uri.Bucket).
			WithDetail("key", uri.Key)
	}
	return out.Body, nil
}
