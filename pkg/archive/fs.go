package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSWriter lands batches under a local directory. This is the lite
// deployment's backend and the one tests use.
type FSWriter struct {
	dir string
}

func NewFSWriter(dir string) (*FSWriter, error) {
	if dir == "" {
		dir = "archive"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("archive: ensure dir: %w", err)
	}
	return &FSWriter{dir: dir}, nil
}

// Put writes through a temp file and rename so an interrupted sweep
// never leaves a half-written batch behind.
func (w *FSWriter) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(w.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("archive: ensure dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("archive: write batch: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("archive: commit batch: %w", err)
	}
	return nil
}
