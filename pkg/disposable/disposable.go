// Package disposable maintains the throwaway-email-domain list and answers
// membership checks against it.
package disposable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/util/resiliency"
)

// RefreshInterval is how often the refresher re-fetches the upstream list.
const RefreshInterval = 24 * time.Hour

// maxListBytes caps the upstream payload. The public lists run ~3 MB.
const maxListBytes = 32 << 20

// Checker answers disposable-domain membership.
type Checker struct {
	set cache.Set
}

// NewChecker wraps the given set.
func NewChecker(set cache.Set) *Checker {
	return &Checker{set: set}
}

// IsDisposable reports whether the domain, or its registrable parent, is on
// the throwaway list. mail.tempdrop.io matches when tempdrop.io is listed.
func (c *Checker) IsDisposable(ctx context.Context, domain string) (bool, error) {
	domain = Normalize(domain)
	if domain == "" {
		return false, nil
	}
	ok, err := c.set.Contains(ctx, domain)
	if err != nil || ok {
		return ok, err
	}
	if etld, perr := publicsuffix.EffectiveTLDPlusOne(domain); perr == nil && etld != domain {
		return c.set.Contains(ctx, etld)
	}
	return false, nil
}

// Normalize lowercases and strips the trailing dot so list entries and
// lookups compare equal.
func Normalize(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// Refresher periodically replaces the set contents from the upstream list.
type Refresher struct {
	set    cache.Set
	url    string
	client *resiliency.Client
	logger *slog.Logger
}

// NewRefresher builds a refresher for the given list URL.
func NewRefresher(set cache.Set, url string, logger *slog.Logger) *Refresher {
	return &Refresher{
		set:    set,
		url:    url,
		client: resiliency.New("disposable-list", 30*time.Second),
		logger: logger,
	}
}

// Refresh fetches the list and atomically swaps it into the set. On any
// failure the previous contents stay in place.
func (r *Refresher) Refresh(ctx context.Context) error {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return fmt.Errorf("disposable: fetch list: %w", err)
	}
	defer resp.Body.Close()

	var raw []string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListBytes)).Decode(&raw); err != nil {
		return fmt.Errorf("disposable: decode list: %w", err)
	}

	domains := make([]string, 0, len(raw))
	for _, d := range raw {
		if d = Normalize(d); d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return fmt.Errorf("disposable: upstream list is empty, keeping previous set")
	}

	if err := r.set.Swap(ctx, domains); err != nil {
		return fmt.Errorf("disposable: swap set: %w", err)
	}
	r.logger.Info("disposable domain list refreshed", "domains", len(domains))
	return nil
}

// Run refreshes immediately and then on every interval tick until the
// context is cancelled. Failures are logged and retried at the next tick.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("initial disposable list refresh failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("disposable list refresh failed", "error", err)
			}
		}
	}
}
