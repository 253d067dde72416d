// Package s3source opens recipient lists stored in S3-compatible object
// storage as ingest sources.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/mailmerge/pkg/ingest"
)

const (
	defaultRegion  = "us-east-1"
	defaultMaxSize = 50 << 20 // 50MB

	// Scheme is the URI scheme accepted by ParseURI.
	Scheme = "s3"
)

var (
	// ErrInvalidURI indicates a malformed s3:// location.
	ErrInvalidURI = errors.New("invalid s3 uri")

	// ErrNotFound indicates the bucket or object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates the credentials cannot read the object.
	ErrAccessDenied = errors.New("access denied")

	// ErrTooLarge indicates the object exceeds the configured size limit.
	ErrTooLarge = errors.New("object exceeds size limit")

	// ErrFetchFailed indicates any other failure reading the object.
	ErrFetchFailed = errors.New("failed to fetch object")
)

// GetObjectAPI is the subset of *s3.Client used to read objects.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds connection settings for the object store.
type Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"` // custom endpoint for MinIO and friends
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
	MaxSize   int64  `mapstructure:"max_size"`
}

// NewClient loads AWS configuration and builds an S3 client. Static keys
// are used when both are set; otherwise the default AWS credential chain
// applies (environment, shared config, instance or task role).
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3source: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	}), nil
}

// ParseURI splits "s3://bucket/path/to/key.csv" into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != Scheme || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: missing object key in %q", ErrInvalidURI, uri)
	}
	return u.Host, key, nil
}

// IsURI reports whether s looks like an s3:// location.
func IsURI(s string) bool {
	return strings.HasPrefix(s, Scheme+"://")
}

// Object is an open object exposed as an ingest.Source.
// Close must be called to release the underlying connection.
type Object struct {
	ingest.Source
	body io.ReadCloser
	Size int64
}

// Close releases the object body.
func (o *Object) Close() error {
	return o.body.Close()
}

// Open fetches bucket/key and wraps its body in a CSV source.
// A maxSize of zero applies the default limit.
func Open(ctx context.Context, client GetObjectAPI, bucket, key string, maxSize int64) (*Object, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapError(err)
	}

	size := aws.ToInt64(out.ContentLength)
	if size > maxSize {
		_ = out.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, maxSize)
	}

	limited := &limitedReader{r: io.LimitReader(out.Body, maxSize+1), limit: maxSize}
	return &Object{
		Source: ingest.NewCSVSource(limited),
		body:   out.Body,
		Size:   size,
	}, nil
}

// limitedReader fails instead of silently truncating when the limit is hit,
// so a partial list is never ingested as if it were complete.
type limitedReader struct {
	r     io.Reader
	read  int64
	limit int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.limit)
	}
	return n, err
}

func wrapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return fmt.Errorf("%w: %v", ErrFetchFailed, err)
}
