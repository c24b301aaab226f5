package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

const (
	// DefaultMaxAttempts bounds retries per delivery; projects may
	// override it in their settings.
	DefaultMaxAttempts = 5

	attemptTimeout = 10 * time.Second
	pollBatch      = 100

	baseBackoff = time.Minute
	maxBackoff  = 16 * time.Minute

	// Per-host delivery budget. Tenants pointing many subscriptions at
	// one receiver share its budget.
	hostRate  = rate.Limit(10)
	hostBurst = 20
)

// DeliverySource is the durable queue the dispatcher drains.
type DeliverySource interface {
	Due(ctx context.Context, now time.Time, limit int) ([]store.Delivery, error)
	MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, nextAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id string, attempts int, lastError string) error
}

// FiredRecorder tracks each subscription's last successful delivery.
type FiredRecorder interface {
	MarkFired(ctx context.Context, id string, at time.Time) error
}

// SettingsSource resolves per-project delivery overrides.
type SettingsSource interface {
	Get(ctx context.Context, id string) (*store.Project, error)
}

// FailureSink records terminal delivery failures in the tenant log.
type FailureSink interface {
	Append(ctx context.Context, e *events.Entry) error
}

// Dispatcher drains the webhook outbox: due rows are POSTed with a
// signed body; failures reschedule with exponential backoff until the
// attempt budget runs out.
type Dispatcher struct {
	source   DeliverySource
	fired    FiredRecorder
	settings SettingsSource
	failures FailureSink
	client   *http.Client
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewDispatcher(source DeliverySource, fired FiredRecorder, settings SettingsSource, failures FailureSink, client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: attemptTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		source:   source,
		fired:    fired,
		settings: settings,
		failures: failures,
		client:   client,
		logger:   logger,
		limiters: map[string]*rate.Limiter{},
	}
}

// RunOnce drains one batch of due deliveries. Returns how many were
// delivered and how many failed (retry or dead).
func (d *Dispatcher) RunOnce(ctx context.Context) (delivered, failed int, err error) {
	due, err := d.source.Due(ctx, time.Now().UTC(), pollBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("webhooks: poll due: %w", err)
	}
	for _, dv := range due {
		if ctx.Err() != nil {
			return delivered, failed, ctx.Err()
		}
		if d.deliver(ctx, dv) {
			delivered++
		} else {
			failed++
		}
	}
	return delivered, failed, nil
}

// Run polls until the context ends.
func (d *Dispatcher) Run(ctx context.Context, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("webhook dispatch round failed", "error", err)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, dv store.Delivery) bool {
	if err := d.hostLimiter(dv.URL).Wait(ctx); err != nil {
		return false
	}

	attempt := dv.Attempts + 1
	sendErr := d.post(ctx, dv)
	now := time.Now().UTC()

	if sendErr == nil {
		if err := d.source.MarkDelivered(ctx, dv.ID, attempt, now); err != nil {
			d.logger.Warn("mark delivered failed", "delivery_id", dv.ID, "error", err)
		}
		if d.fired != nil {
			_ = d.fired.MarkFired(ctx, dv.WebhookID, now)
		}
		return true
	}

	if attempt >= d.maxAttempts(ctx, dv.ProjectID) {
		if err := d.source.MarkDead(ctx, dv.ID, attempt, sendErr.Error()); err != nil {
			d.logger.Warn("mark dead failed", "delivery_id", dv.ID, "error", err)
		}
		d.recordFailure(ctx, dv, attempt, sendErr)
		return false
	}

	next := now.Add(backoff(attempt))
	if err := d.source.MarkRetry(ctx, dv.ID, attempt, next, sendErr.Error()); err != nil {
		d.logger.Warn("mark retry failed", "delivery_id", dv.ID, "error", err)
	}
	return false
}

func (d *Dispatcher) post(ctx context.Context, dv store.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dv.URL, bytes.NewReader(dv.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "orbitcheck-webhooks/1.0")
	req.Header.Set(SignatureHeader, Sign(dv.Secret, dv.Payload))
	req.Header.Set("X-OrbiCheck-Event", dv.EventType)
	req.Header.Set("X-OrbiCheck-Delivery", dv.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, dv store.Delivery, attempts int, sendErr error) {
	if d.failures == nil {
		return
	}
	err := d.failures.Append(ctx, &events.Entry{
		ProjectID:   dv.ProjectID,
		Type:        events.TypeWebhookFailure,
		Endpoint:    dv.URL,
		ReasonCodes: []string{reason.WebhookSendFailed},
		Status:      "failed",
		Meta: map[string]any{
			"webhook_id":  dv.WebhookID,
			"delivery_id": dv.ID,
			"event_type":  dv.EventType,
			"attempts":    attempts,
			"last_error":  sendErr.Error(),
		},
	})
	if err != nil {
		d.logger.Warn("record webhook failure event", "delivery_id", dv.ID, "error", err)
	}
}

func (d *Dispatcher) maxAttempts(ctx context.Context, projectID string) int {
	if d.settings != nil {
		if p, err := d.settings.Get(ctx, projectID); err == nil && p.Settings.WebhookMaxAttempts > 0 {
			return p.Settings.WebhookMaxAttempts
		}
	}
	return DefaultMaxAttempts
}

func (d *Dispatcher) hostLimiter(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[host]
	if !ok {
		l = rate.NewLimiter(hostRate, hostBurst)
		d.limiters[host] = l
	}
	return l
}

// backoff doubles per attempt: 1m, 2m, 4m, 8m, 16m. The fifth and last
// retry lands about half an hour after the first attempt.
func backoff(attempt int) time.Duration {
	b := baseBackoff << (attempt - 1)
	if b > maxBackoff || b <= 0 {
		return maxBackoff
	}
	return b
}
