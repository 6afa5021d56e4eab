package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver copies a successful upload's original bytes to durable off-box
// storage. Archival is best-effort: callers log failures and carry on.
type Archiver interface {
	// Put stores data under key and returns the resulting URL.
	Put(ctx context.Context, key string, data io.Reader) (url string, err error)

	// Enabled reports whether the archiver actually ships bytes anywhere.
	Enabled() bool
}

// ArchiveConfig holds the configuration for the S3 archiver.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Archiver ships original upload bytes to an S3 bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Archiver creates an S3Archiver from cfg.
func NewS3Archiver(cfg ArchiveConfig) (*S3Archiver, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// Put uploads data to the configured bucket and returns the object URL.
func (a *S3Archiver) Put(ctx context.Context, key string, data io.Reader) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("archive to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key), nil
}

// Enabled always reports true for a constructed S3Archiver.
func (a *S3Archiver) Enabled() bool { return true }

// NopArchiver is the Archiver used when no archive bucket is configured.
type NopArchiver struct{}

// Put discards the data and returns an empty URL.
func (NopArchiver) Put(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", nil
}

// Enabled always reports false.
func (NopArchiver) Enabled() bool { return false }
