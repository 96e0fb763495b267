// Package objectstore keeps one object per key in an S3 compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "application/json"

// Config describes the bucket records are written to.
type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	Region   string
	// Prefix is prepended to every object name, e.g. "persist/".
	Prefix string
	Secure bool
	// CheckBucket makes New fail when the bucket does not exist.
	CheckBucket  bool
	RequestTrace io.Writer
}

// Validate reports missing connection fields.
func (c Config) Validate() error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"endpoint", c.Endpoint},
		{"access", c.Access},
		{"secret", c.Secret},
		{"bucket", c.Bucket},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("objectstore: missing config fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Store implements Get/Set on top of a minio client.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New builds a client for cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Region: cfg.Region,
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: client: %w", err)
	}
	if cfg.RequestTrace != nil {
		client.TraceOn(cfg.RequestTrace)
	}
	if cfg.CheckBucket {
		found, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("objectstore: check bucket %q: %w", cfg.Bucket, err)
		}
		if !found {
			return nil, fmt.Errorf("objectstore: bucket %q does not exist", cfg.Bucket)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ObjectName maps key to the object it is stored in.
func (s *Store) ObjectName(key string) string {
	return objectName(s.prefix, key)
}

func objectName(prefix, key string) string {
	name := strings.TrimPrefix(key, "/") + ".json"
	if prefix == "" {
		return name
	}
	return path.Join(strings.TrimPrefix(prefix, "/"), name)
}

// Get downloads the object for key. NoSuchKey reports ok=false.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.ObjectName(key), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("objectstore: read %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("objectstore: read %q: %w", key, err)
	}
	return data, true, nil
}

// Set uploads value as the object for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.ObjectName(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("objectstore: write %q: %w", key, err)
	}
	return nil
}

// Delete removes the object for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.ObjectName(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("objectstore: delete %q: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		resp = minio.ToErrorResponse(err)
	}
	return resp.Code == "NoSuchKey"
}
