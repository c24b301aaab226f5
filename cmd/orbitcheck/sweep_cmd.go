package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/archive"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

// runSweepCmd runs one retention pass: expired log entries are archived
// to the configured backend, then deleted. The server runs the same pass
// daily; this command exists for cron setups and backfills.
func runSweepCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	cfg, db, err := openConfigured(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "sweep: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	archiver, err := archive.New(ctx, archive.Options{
		Type:       cfg.ArchiveType,
		Dir:        cfg.ArchiveDir,
		S3Bucket:   cfg.ArchiveS3Bucket,
		S3Region:   cfg.ArchiveS3Region,
		S3Endpoint: cfg.ArchiveS3Endpoint,
		S3Prefix:   cfg.ArchiveS3Prefix,
		GCSBucket:  cfg.ArchiveGCSBucket,
		GCSPrefix:  cfg.ArchiveGCSPrefix,
	})
	if err != nil {
		fmt.Fprintf(stderr, "sweep: archive backend: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	sweeper := events.NewSweeper(store.NewEventStore(db), archiver, retention, logger)

	removed, err := sweeper.SweepOnce(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "sweep: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "swept %d expired log entries (retention %dd)\n", removed, cfg.RetentionDays)
	return 0
}
