// Package validate implements the data-hygiene validators: email, phone,
// postal address, tax ID, and personal name. Each validator returns a
// deterministic result with reason codes from the catalogue in pkg/reason;
// outages of collaborating services surface as reason codes, never as
// transport errors.
package validate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/disposable"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/dnsx"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

const (
	// EmailResultTTL is how long a full validation verdict stays cached.
	EmailResultTTL = 30 * 24 * time.Hour
	// DomainFactsTTL is how long per-domain facts (MX presence, disposable
	// membership) stay cached.
	DomainFactsTTL = 7 * 24 * time.Hour
)

// EmailResult is the verdict for one address.
type EmailResult struct {
	Valid       bool     `json:"valid"`
	Normalized  string   `json:"normalized"`
	Disposable  bool     `json:"disposable"`
	MXFound     bool     `json:"mx_found"`
	ReasonCodes []string `json:"reason_codes"`
	TTLSeconds  int      `json:"ttl_seconds"`
}

// domainFacts are the per-domain findings shared across addresses.
type domainFacts struct {
	MXFound    bool `json:"mx_found"`
	Disposable bool `json:"disposable"`
}

// EmailValidator validates addresses with read-through caching of both the
// full verdict and the per-domain facts.
type EmailValidator struct {
	cache      cache.Cache
	resolver   dnsx.Resolver
	disposable *disposable.Checker
	logger     *slog.Logger
}

// NewEmailValidator wires the validator. cache may be nil; lookups then
// always recompute.
func NewEmailValidator(c cache.Cache, r dnsx.Resolver, d *disposable.Checker, logger *slog.Logger) *EmailValidator {
	return &EmailValidator{cache: c, resolver: r, disposable: d, logger: logger}
}

// Validate normalizes and validates one address. The returned result is
// always non-nil; internal panics degrade to email.server_error and are
// never cached.
func (v *EmailValidator) Validate(ctx context.Context, raw string) (res *EmailResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("email validator panicked", "panic", fmt.Sprint(r))
			res = &EmailResult{
				Valid:       false,
				ReasonCodes: []string{reason.EmailServerError},
			}
		}
	}()

	normalized, ok := NormalizeEmail(raw)
	if !ok {
		return &EmailResult{
			Valid:       false,
			ReasonCodes: []string{reason.EmailInvalidFormat},
			TTLSeconds:  int(EmailResultTTL.Seconds()),
		}
	}

	key := emailCacheKey(normalized)
	if cached, hit := v.cachedResult(ctx, key); hit {
		return cached
	}

	res = &EmailResult{
		Normalized:  normalized,
		ReasonCodes: []string{},
		TTLSeconds:  int(EmailResultTTL.Seconds()),
	}

	if !syntaxOK(normalized) {
		res.ReasonCodes = append(res.ReasonCodes, reason.EmailInvalidFormat)
		v.store(ctx, key, res)
		return res
	}
	domain := normalized[strings.LastIndexByte(normalized, '@')+1:]

	facts := v.domainFacts(ctx, domain)
	res.MXFound = facts.MXFound
	res.Disposable = facts.Disposable
	if !facts.MXFound {
		res.ReasonCodes = append(res.ReasonCodes, reason.EmailMXNotFound)
	}
	if facts.Disposable {
		res.ReasonCodes = append(res.ReasonCodes, reason.EmailDisposableDomain)
	}

	res.Valid = facts.MXFound && !facts.Disposable
	v.store(ctx, key, res)
	return res
}

// NormalizeEmail lowercases, trims, and converts an internationalized
// domain to ASCII. ok=false means the input is empty and cannot be keyed.
func NormalizeEmail(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return s, true
	}
	local, domain := s[:at], s[at+1:]
	if ascii, err := idna.Lookup.ToASCII(domain); err == nil {
		domain = ascii
	}
	return local + "@" + domain, true
}

// syntaxOK applies the RFC 5322 addr-spec check plus the practical
// requirement of a dotted domain.
func syntaxOK(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func emailCacheKey(normalized string) string {
	sum := sha1.Sum([]byte(normalized))
	return "validator:email:" + hex.EncodeToString(sum[:])
}

func (v *EmailValidator) cachedResult(ctx context.Context, key string) (*EmailResult, bool) {
	if v.cache == nil {
		return nil, false
	}
	data, hit, err := v.cache.Get(ctx, key)
	if err != nil {
		v.logger.Warn("email result cache read failed", "error", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var res EmailResult
	if err := json.Unmarshal(data, &res); err != nil {
		v.logger.Warn("email result cache entry corrupt", "error", err)
		return nil, false
	}
	return &res, true
}

func (v *EmailValidator) store(ctx context.Context, key string, res *EmailResult) {
	if v.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, key, data, EmailResultTTL); err != nil {
		v.logger.Warn("email result cache write failed", "error", err)
	}
}

// domainFacts resolves MX presence and disposable membership for a domain,
// read-through with a 7-day TTL. Lookup failures degrade: DNS errors count
// as no mail servers, a broken disposable set counts as not disposable.
func (v *EmailValidator) domainFacts(ctx context.Context, domain string) domainFacts {
	key := "domain:" + domain
	if v.cache != nil {
		if data, hit, err := v.cache.Get(ctx, key); err == nil && hit {
			var facts domainFacts
			if json.Unmarshal(data, &facts) == nil {
				return facts
			}
		}
	}

	facts := domainFacts{
		MXFound: dnsx.HasMailServers(ctx, v.resolver, domain),
	}
	if v.disposable != nil {
		isDisposable, err := v.disposable.IsDisposable(ctx, domain)
		if err != nil {
			v.logger.Warn("disposable set lookup failed", "domain", domain, "error", err)
		}
		facts.Disposable = isDisposable
	}

	if v.cache != nil {
		if data, err := json.Marshal(facts); err == nil {
			if err := v.cache.Set(ctx, key, data, DomainFactsTTL); err != nil {
				v.logger.Warn("domain facts cache write failed", "error", err)
			}
		}
	}
	return facts
}
