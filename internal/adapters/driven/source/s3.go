package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.DocumentSource = (*S3)(nil)

// ObjectGetter is the subset of the S3 client used to download objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 downloads documents addressed as s3://bucket/key.
type S3 struct {
	client ObjectGetter
}

// NewS3 creates an S3 source using client.
func NewS3(client ObjectGetter) *S3 {
	return &S3{client: client}
}

// NewS3FromEnv creates an S3 source from the default AWS credential chain.
func NewS3FromEnv(ctx context.Context, region string) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg)), nil
}

// Fetch downloads the object at storagePath.
func (s *S3) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	bucket, key, err := ParseS3URI(storagePath)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to download %s: %w", storagePath, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", storagePath, err)
	}
	return data, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, SchemeS3)
	if !ok {
		return "", "", fmt.Errorf("%w: not an s3 URI: %s", domain.ErrInvalidInput, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: s3 URI needs a bucket and key: %s", domain.ErrInvalidInput, uri)
	}
	return bucket, key, nil
}
