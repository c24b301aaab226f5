package auth

import (
	"context"
	"errors"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches a Principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal from the context.
func GetPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil {
		return nil, errors.New("no principal in context")
	}
	return p, nil
}

// GetProjectID is a helper to get the tenant id from the context's Principal.
func GetProjectID(ctx context.Context) (string, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return "", err
	}
	return p.ProjectID, nil
}

// ProjectID returns the tenant id or "" when the request is unauthenticated.
// Middleware that runs on public routes uses this form.
func ProjectID(ctx context.Context) string {
	id, _ := GetProjectID(ctx)
	return id
}
