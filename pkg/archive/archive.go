// Package archive copies expired event-log entries to durable object
// storage before the retention sweep deletes them. Batches are written
// as NDJSON, one entry per line, under date-partitioned keys.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
)

// ObjectWriter lands one archive batch under a key.
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Archiver encodes entry batches and hands them to a backend.
type Archiver struct {
	writer ObjectWriter
}

var _ events.Archiver = (*Archiver)(nil)

func NewArchiver(w ObjectWriter) *Archiver {
	return &Archiver{writer: w}
}

// Archive writes one NDJSON object per batch. The sweep deletes rows
// only after this returns nil, so a failed write never loses entries.
func (a *Archiver) Archive(ctx context.Context, entries []events.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("archive: encode entry %s: %w", entries[i].ID, err)
		}
	}
	key := batchKey(entries)
	if err := a.writer.Put(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("archive: write %s: %w", key, err)
	}
	return nil
}

// batchKey partitions by the day of the oldest entry; the first and
// last ids make the object name unique and the covered range visible.
func batchKey(entries []events.Entry) string {
	first, last := entries[0], entries[len(entries)-1]
	return first.CreatedAt.UTC().Format("2006/01/02") + "/" + first.ID + "-" + last.ID + ".ndjson"
}

// Options selects and configures the archive backend.
type Options struct {
	// Type is "" or "none" (archiving disabled), "fs", "s3" or "gcs".
	Type string

	// Dir is the base directory of the fs backend.
	Dir string

	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string

	GCSBucket string
	GCSPrefix string
}

// New builds the archiver selected by opts.Type. A disabled backend
// returns (nil, nil); the retention sweep treats a nil archiver as
// delete-without-copy.
func New(ctx context.Context, opts Options) (events.Archiver, error) {
	switch opts.Type {
	case "", "none":
		return nil, nil
	case "fs":
		w, err := NewFSWriter(opts.Dir)
		if err != nil {
			return nil, err
		}
		return NewArchiver(w), nil
	case "s3":
		if opts.S3Bucket == "" {
			return nil, fmt.Errorf("archive: s3 backend requires a bucket")
		}
		w, err := NewS3Writer(ctx, S3Config{
			Bucket:   opts.S3Bucket,
			Region:   opts.S3Region,
			Endpoint: opts.S3Endpoint,
			Prefix:   opts.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		return NewArchiver(w), nil
	case "gcs":
		w, err := newGCSWriter(ctx, opts)
		if err != nil {
			return nil, err
		}
		return NewArchiver(w), nil
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", opts.Type)
	}
}
