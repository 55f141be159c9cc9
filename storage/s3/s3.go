// Package s3 stores memory blobs as objects in an S3 bucket, optionally
// under a key prefix.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/storage"
)

// Client is the subset of *s3.Client used by Store.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ Client = (*s3.Client)(nil)

// Options configures the S3 store.
type Options struct {
	// Prefix is prepended to every key ("agentcatalog/").
	Prefix string
	// ContentType is set on written objects.
	ContentType string
}

// Store is a core.FileStore over one S3 bucket.
type Store struct {
	client Client
	bucket string
	opts   Options
}

// New creates a store using an existing client.
func New(client Client, bucket string, optFns ...func(o *Options)) *Store {
	opts := Options{ContentType: "application/json"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Prefix != "" && !strings.HasSuffix(opts.Prefix, "/") {
		opts.Prefix += "/"
	}
	return &Store{client: client, bucket: bucket, opts: opts}
}

// NewFromDefaultConfig loads the shared AWS configuration and creates a store.
func NewFromDefaultConfig(ctx context.Context, bucket string, optFns ...func(o *Options)) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, optFns...), nil
}

func (s *Store) objectKey(p string) (string, string, error) {
	key, err := storage.CleanPath(p)
	if err != nil {
		return "", "", err
	}
	return key, s.opts.Prefix + key, nil
}

// Read implements core.FileStore.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	key, obj, err := s.objectKey(p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(obj),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("s3: %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read body %s: %w", key, err)
	}
	return data, nil
}

// Write implements core.FileStore.
func (s *Store) Write(ctx context.Context, p string, data []byte) error {
	key, obj, err := s.objectKey(p)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.opts.ContentType),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

// Delete implements core.FileStore. S3 deletes are idempotent, so existence
// is checked first to report core.ErrNotFound.
func (s *Store) Delete(ctx context.Context, p string) error {
	key, obj, err := s.objectKey(p)
	if err != nil {
		return err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(obj),
	})
	if isNotFound(err) {
		return fmt.Errorf("s3: %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("s3: head %s: %w", key, err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(obj),
	}); err != nil {
		return fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return nil
}

// List implements core.FileStore.
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if err := storage.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.opts.Prefix + storage.StaticPrefix(pattern)),
	}
	var names []string
	for {
		out, err := s.client.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("s3: list %q: %w", pattern, err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.opts.Prefix)
			if name != "" {
				names = append(names, name)
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}
	return storage.FilterSorted(pattern, names), nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
