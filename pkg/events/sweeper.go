package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// sweepBatch bounds how many rows one archive/delete round handles.
const sweepBatch = 500

// ExpiredSource reads and removes entries past retention. Implemented
// by the event store.
type ExpiredSource interface {
	Expired(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// Archiver receives expired batches before they are deleted. A nil
// archiver means sweep-and-drop.
type Archiver interface {
	Archive(ctx context.Context, batch []Entry) error
}

// Sweeper enforces log retention: entries older than the window are
// archived, then deleted. Rows are only deleted after their batch
// archived successfully.
type Sweeper struct {
	source    ExpiredSource
	archiver  Archiver
	retention time.Duration
	logger    *slog.Logger
}

func NewSweeper(source ExpiredSource, archiver Archiver, retention time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{source: source, archiver: archiver, retention: retention, logger: logger}
}

// SweepOnce runs one full pass and returns how many entries it removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	total := 0
	for {
		batch, err := s.source.Expired(ctx, cutoff, sweepBatch)
		if err != nil {
			return total, fmt.Errorf("events: select expired: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}
		if s.archiver != nil {
			if err := s.archiver.Archive(ctx, batch); err != nil {
				return total, fmt.Errorf("events: archive batch: %w", err)
			}
		}
		ids := make([]string, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}
		if err := s.source.DeleteByIDs(ctx, ids); err != nil {
			return total, fmt.Errorf("events: delete swept: %w", err)
		}
		total += len(batch)
		if len(batch) < sweepBatch {
			return total, nil
		}
	}
}

// Run sweeps once at start and then on every tick until the context
// ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if n, err := s.SweepOnce(ctx); err != nil {
		s.logger.Warn("retention sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info("retention sweep removed entries", "count", n)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("retention sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Info("retention sweep removed entries", "count", n)
			}
		}
	}
}
