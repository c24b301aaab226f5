package events

import (
	"context"
	"fmt"
	"log/slog"
)

// Store persists entries. Implemented by the event store.
type Store interface {
	Append(ctx context.Context, e *Entry) error
}

// Notifier receives every persisted entry; the webhook layer implements
// it to fan deliveries out to matching subscriptions.
type Notifier interface {
	Notify(ctx context.Context, e *Entry) error
}

// Logger is the single write path into the tenant event log. Persisting
// the entry is the contract; fanout is best-effort and never fails the
// request that produced the entry.
type Logger struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

func NewLogger(store Store, notifier Notifier, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{store: store, notifier: notifier, logger: logger}
}

// Append persists the entry and notifies subscribers.
func (l *Logger) Append(ctx context.Context, e *Entry) error {
	if err := l.store.Append(ctx, e); err != nil {
		return fmt.Errorf("events: append: %w", err)
	}
	if l.notifier != nil {
		if err := l.notifier.Notify(ctx, e); err != nil {
			l.logger.Warn("event fanout failed",
				"project_id", e.ProjectID, "type", e.Type, "error", err)
		}
	}
	return nil
}
