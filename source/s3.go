package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/halfmoth/stickersync/iox"
)

// S3Config holds configuration for an S3-compatible hub source.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers (R2, MinIO).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3API is the subset of the S3 client used by S3Source.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches hub content from an S3-compatible bucket.
type S3Source struct {
	config S3Config
	client s3API
}

// NewS3Source creates an S3 source using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Load AWS config with optional region
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with optional endpoint and path-style overrides
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Source{
		config: cfg,
		client: s3.NewFromConfig(awsConfig, s3Opts...),
	}, nil
}

// Fetch performs a single GetObject for the given hub-relative path.
func (s *S3Source) Fetch(ctx context.Context, p string) ([]byte, error) {
	key := p
	if s.config.Prefix != "" {
		key = path.Join(s.config.Prefix, p)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, classifyS3(p, err)
	}
	defer iox.DiscardClose(out.Body)

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classifyTransport(p, err)
	}
	return body, nil
}

// Describe returns the bucket location for logs and reports.
func (s *S3Source) Describe() string {
	if s.config.Prefix != "" {
		return fmt.Sprintf("s3://%s/%s", s.config.Bucket, s.config.Prefix)
	}
	return "s3://" + s.config.Bucket
}

// classifyS3 maps an S3 SDK failure to a FetchError. Missing objects
// behave like an HTTP 404 so callers treat both backends alike.
func classifyS3(p string, err error) error {
	var noKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return &FetchError{Kind: KindStatus, Path: p, Status: http.StatusNotFound, Err: err}
	}
	return classifyTransport(p, err)
}

// Verify S3Source implements the source interface.
var _ Source = (*S3Source)(nil)
