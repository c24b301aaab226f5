// Package dnsx resolves mail-server records for email validation.
package dnsx

import (
	"context"
	"net"
	"time"
)

// Timeout bounds every DNS lookup. Deliverability is best-effort; a slow
// resolver must not stall the request.
const Timeout = 5 * time.Second

// Resolver answers the record lookups the email validator needs.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]string, error)
	LookupA(ctx context.Context, domain string) ([]string, error)
	LookupAAAA(ctx context.Context, domain string) ([]string, error)
}

// NetResolver resolves through net.DefaultResolver.
type NetResolver struct{}

func (NetResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	records, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		if mx.Host != "" && mx.Host != "." {
			hosts = append(hosts, mx.Host)
		}
	}
	return hosts, nil
}

func (NetResolver) LookupA(ctx context.Context, domain string) ([]string, error) {
	return lookupIP(ctx, "ip4", domain)
}

func (NetResolver) LookupAAAA(ctx context.Context, domain string) ([]string, error) {
	return lookupIP(ctx, "ip6", domain)
}

func lookupIP(ctx context.Context, network, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupIP(ctx, network, domain)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out, nil
}

// HasMailServers reports whether the domain can plausibly receive mail:
// MX records first, then A, then AAAA as implicit-MX fallbacks. Lookup
// errors count as absence; the caller caches the negative like any other
// domain fact.
func HasMailServers(ctx context.Context, r Resolver, domain string) bool {
	if hosts, err := r.LookupMX(ctx, domain); err == nil && len(hosts) > 0 {
		return true
	}
	if addrs, err := r.LookupA(ctx, domain); err == nil && len(addrs) > 0 {
		return true
	}
	if addrs, err := r.LookupAAAA(ctx, domain); err == nil && len(addrs) > 0 {
		return true
	}
	return false
}
