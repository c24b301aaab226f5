package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

// SubscriptionSource finds the active subscriptions for an event type.
type SubscriptionSource interface {
	Matching(ctx context.Context, projectID, eventType string) ([]store.Webhook, error)
}

// Queue accepts outbox rows. Enqueue must be idempotent on the row id.
type Queue interface {
	Enqueue(ctx context.Context, rec *store.OutboxRecord) error
}

// Fanout implements events.Notifier: each persisted log entry becomes
// one outbox row per matching subscription. The outbox id is derived
// from the entry and subscription ids, so replaying an entry never
// duplicates deliveries.
type Fanout struct {
	subs   SubscriptionSource
	queue  Queue
	logger *slog.Logger
}

func NewFanout(subs SubscriptionSource, queue Queue, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{subs: subs, queue: queue, logger: logger}
}

// Notify enqueues the entry for every matching subscription.
// webhook_failure entries are not fanned out: delivering failure
// notices to the endpoint that is failing would feed back into itself.
func (f *Fanout) Notify(ctx context.Context, e *events.Entry) error {
	if e.Type == events.TypeWebhookFailure {
		return nil
	}
	hooks, err := f.subs.Matching(ctx, e.ProjectID, e.Type)
	if err != nil {
		return fmt.Errorf("webhooks: match subscriptions: %w", err)
	}
	if len(hooks) == 0 {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("webhooks: encode payload: %w", err)
	}
	for _, h := range hooks {
		rec := &store.OutboxRecord{
			ID:        e.ID + ":" + h.ID,
			ProjectID: e.ProjectID,
			WebhookID: h.ID,
			EventType: e.Type,
			Payload:   payload,
		}
		if err := f.queue.Enqueue(ctx, rec); err != nil {
			return fmt.Errorf("webhooks: enqueue for %s: %w", h.ID, err)
		}
	}
	return nil
}
