// Package objectstore reads reference datasets from S3.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"campus-assistant/internal/reference"
)

// maxObjectBytes bounds a single reference object.
const maxObjectBytes = 8 << 20

type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client fetches objects from one bucket. It implements reference.Fetcher.
type Client struct {
	api    s3API
	bucket string
}

func New(api s3API, bucket string) (*Client, error) {
	if api == nil {
		return nil, errors.New("objectstore: api must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("objectstore: bucket must not be empty")
	}
	return &Client{api: api, bucket: bucket}, nil
}

// Fetch returns the object body. A missing object maps to
// reference.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, fmt.Errorf("objectstore: empty key: %w", reference.ErrNotFound)
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("objectstore: s3://%s/%s: %w", c.bucket, key, reference.ErrNotFound)
		}
		return nil, fmt.Errorf("objectstore: get s3://%s/%s: %w", c.bucket, key, err)
	}
	if out == nil || out.Body == nil {
		return nil, fmt.Errorf("objectstore: s3://%s/%s: empty body", c.bucket, key)
	}
	defer func() { _ = out.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("objectstore: read s3://%s/%s: %w", c.bucket, key, err)
	}
	if len(buf) > maxObjectBytes {
		return nil, fmt.Errorf("objectstore: s3://%s/%s exceeds %d bytes", c.bucket, key, maxObjectBytes)
	}
	return buf, nil
}
