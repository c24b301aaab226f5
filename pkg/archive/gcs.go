//go:build gcp

package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSWriter lands batches in a Cloud Storage bucket. Credentials come
// from Application Default Credentials.
type GCSWriter struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSWriter(ctx context.Context, bucket, prefix string) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: create GCS client: %w", err)
	}
	return &GCSWriter{client: client, bucket: bucket, prefix: prefix}, nil
}

func (w *GCSWriter) Put(ctx context.Context, key string, data []byte) error {
	obj := w.client.Bucket(w.bucket).Object(w.prefix + key)
	wr := obj.NewWriter(ctx)
	wr.ContentType = "application/x-ndjson"
	if _, err := wr.Write(data); err != nil {
		_ = wr.Close()
		return fmt.Errorf("archive: gcs write %s: %w", key, err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("archive: gcs commit %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (w *GCSWriter) Close() error {
	return w.client.Close()
}

func newGCSWriter(ctx context.Context, opts Options) (ObjectWriter, error) {
	if opts.GCSBucket == "" {
		return nil, fmt.Errorf("archive: gcs backend requires a bucket")
	}
	return NewGCSWriter(ctx, opts.GCSBucket, opts.GCSPrefix)
}
