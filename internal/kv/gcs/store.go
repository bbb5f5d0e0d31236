// Package gcs implements kv.Store on Google Cloud Storage objects.
// Each key is one object under an optional prefix.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finsight/internal/kv"
	"google.golang.org/api/option"
)

// Store is a kv.Store backed by a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed store. Without options it relies on Application
// Default Credentials (gcloud auth application-default login).
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// ObjectName maps a key to its object path inside the bucket.
func ObjectName(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key + ".json"
	}
	return path.Join(prefix, key+".json")
}

// URI returns the gs:// URI for key.
func (s *Store) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, ObjectName(s.prefix, key))
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	objectPath := ObjectName(s.prefix, key)

	rc, err := s.client.Bucket(s.bucket).Object(objectPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get: reading object %s/%s: %w", s.bucket, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("Get: reading bytes: %w", err)
	}

	return data, true, nil
}

// Put implements kv.Store.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	objectPath := ObjectName(s.prefix, key)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("Put: write %s/%s: %w", s.bucket, objectPath, err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("Put: finalize upload: %w", err)
	}

	return nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ensure Store implements kv.Store.
var _ kv.Store = (*Store)(nil)
