package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options configures the S3 object store
type Options struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	Endpoint      string // custom endpoint for S3-compatible providers
	PublicBaseURL string
}

// S3Store stores photo blobs in an S3-compatible bucket
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store creates an S3 store. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		bucket:        opts.Bucket,
		publicBaseURL: opts.PublicBaseURL,
	}, nil
}

// Put uploads a blob at path
func (s *S3Store) Put(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", path, err)
	}
	return nil
}

// Delete removes the blob at path
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", path, err)
	}
	return nil
}

// PublicURL returns the world-readable URL of a stored photo
func (s *S3Store) PublicURL(path string) string {
	return PublicURL(s.publicBaseURL, path)
}

// PublicURL builds {base}/storage/v1/object/public/photos/{path}
func PublicURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/storage/v1/object/public/photos/" + strings.TrimLeft(path, "/")
}

// PhotoPath builds {pairID}/{unixMillis}_{batchIndex}.jpg
func PhotoPath(pairID string, unixMillis int64, batchIndex int) (path, filename string) {
	filename = fmt.Sprintf("%d_%d.jpg", unixMillis, batchIndex)
	return pairID + "/" + filename, filename
}
