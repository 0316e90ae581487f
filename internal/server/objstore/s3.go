// Package objstore wraps the S3-compatible object storage used for uploaded
// images and model artifacts. "Not found" is reported as common.ErrorNotFound
// so callers can distinguish it from transport failures.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/melcdl/melcdl-backend/internal/common"
)

// Config carries connection settings for the S3-compatible backend
// (MinIO in development).
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// api is the subset of *s3.Client the wrapper uses; injected in tests.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Client is a process-wide object storage client; the underlying SDK client
// pools connections internally and is safe for concurrent use.
type Client struct {
	s3 api
}

// New builds a Client against cfg.Endpoint using static credentials and
// path-style addressing.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &Client{s3: client}, nil
}

// EnsureBucket creates the bucket if it does not yet exist. Safe to call
// repeatedly.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Put stores body at bucket/key.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get returns the object bytes at bucket/key, or common.ErrorNotFound.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: object %s/%s", common.ErrorNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Head checks existence of bucket/key. Returns nil when the object exists,
// common.ErrorNotFound when it does not and the transport error otherwise.
func (c *Client) Head(ctx context.Context, bucket, key string) error {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: object %s/%s", common.ErrorNotFound, bucket, key)
		}
		return fmt.Errorf("head object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// isNotFound classifies SDK errors that mean "no such object/bucket".
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return true
	}
	// HeadObject reports 404 as a generic API error with code NotFound
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

// JoinPath builds the persisted storage path "<bucket>/<key>".
func JoinPath(bucket, key string) string {
	return strings.TrimSuffix(bucket, "/") + "/" + strings.TrimPrefix(key, "/")
}

// SplitPath splits a persisted storage path into bucket and key.
func SplitPath(storagePath string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(storagePath, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed storage path %q", common.ErrorBadRequest, storagePath)
	}
	return bucket, key, nil
}
