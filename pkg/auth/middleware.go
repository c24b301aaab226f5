package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
)

// Class partitions routes by required credential strength.
type Class int

const (
	// Public routes bypass auth entirely.
	Public Class = iota
	// Dashboard routes require a session.
	Dashboard
	// Management routes accept session or PAT.
	Management
	// Runtime routes accept session, PAT, bearer API key, or HMAC.
	Runtime
)

// Bucket names the rate-limit bucket for a class.
func (c Class) Bucket() string {
	switch c {
	case Dashboard:
		return "dashboard"
	case Management:
		return "management"
	case Runtime:
		return "runtime"
	default:
		return "public"
	}
}

// CredentialStore resolves stored credentials for verification.
type CredentialStore interface {
	APIKeyByPrefix(ctx context.Context, prefix string) (*APIKeyRecord, error)
	APIKeyByID(ctx context.Context, id string) (*APIKeyRecord, error)
	PATByTokenID(ctx context.Context, tokenID string) (*PATRecord, error)
}

// Options wires the middleware's collaborators.
type Options struct {
	Sessions *SessionManager
	Creds    CredentialStore
	HMAC     *HMACVerifier
	Pepper   []byte
}

// Require returns middleware enforcing the given route class. On success the
// request context carries a Principal; on failure the envelope carries
// invalid_token, unauthorized, or no_project.
func (o *Options) Require(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if class == Public {
				next.ServeHTTP(w, r)
				return
			}

			principal, apiErr := o.resolve(r, class)
			if apiErr != nil {
				api.WriteAPIError(w, apiErr)
				return
			}
			if principal.ProjectID == "" {
				api.WriteForbidden(w, "")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// resolve walks the detection order: session cookie, then Bearer token,
// then the HMAC scheme.
func (o *Options) resolve(r *http.Request, class Class) (*Principal, *api.Error) {
	if p, err := o.Sessions.FromCookie(r); err != nil {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "invalid or expired session")
	} else if p != nil {
		return p, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeUnauthorized, "missing credentials")
	}

	if token, found := strings.CutPrefix(header, "Bearer "); found {
		if class == Dashboard {
			return nil, api.Errorf(http.StatusUnauthorized, api.CodeUnauthorized, "this endpoint requires a session")
		}
		if strings.HasPrefix(token, PATPrefix) {
			return o.resolvePAT(r, token)
		}
		if class != Runtime {
			// Management accepts PATs but not project API keys.
			return nil, api.Errorf(http.StatusUnauthorized, api.CodeUnauthorized, "api keys are not accepted here")
		}
		return o.resolveAPIKey(r, token)
	}

	if strings.HasPrefix(header, HMACScheme+" ") {
		if class != Runtime {
			return nil, api.Errorf(http.StatusUnauthorized, api.CodeUnauthorized, "signed requests are not accepted here")
		}
		return o.resolveHMAC(r, header)
	}

	return nil, api.Errorf(http.StatusUnauthorized, api.CodeUnauthorized, "unsupported authorization scheme")
}

func (o *Options) resolveAPIKey(r *http.Request, token string) (*Principal, *api.Error) {
	prefix, ok := APIKeyIndexPrefix(token)
	if !ok {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "malformed api key")
	}
	rec, err := o.Creds.APIKeyByPrefix(r.Context(), prefix)
	if err != nil || !VerifyAPIKey(token, rec) {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "unknown or revoked api key")
	}
	return &Principal{ProjectID: rec.ProjectID, Method: MethodAPIKey}, nil
}

func (o *Options) resolvePAT(r *http.Request, token string) (*Principal, *api.Error) {
	tokenID, secret, ok := SplitPAT(token)
	if !ok {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "malformed personal access token")
	}
	rec, err := o.Creds.PATByTokenID(r.Context(), tokenID)
	if err != nil || rec == nil || rec.Status != CredentialActive {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "unknown or revoked token")
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "token expired")
	}
	if !ipAllowed(r, rec.IPAllowlist) {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "token not valid from this address")
	}
	if !VerifyPATSecret(secret, o.Pepper, rec.SecretHash) {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "invalid token secret")
	}
	return &Principal{
		ProjectID: rec.ProjectID,
		UserID:    rec.UserID,
		Scopes:    rec.Scopes,
		Method:    MethodPAT,
	}, nil
}

func (o *Options) resolveHMAC(r *http.Request, header string) (*Principal, *api.Error) {
	params, err := ParseHMACHeader(header)
	if err != nil {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "malformed HMAC authorization")
	}
	rec, err := o.Creds.APIKeyByID(r.Context(), params.KeyID)
	if err != nil {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "unknown key id")
	}
	if err := o.HMAC.Verify(r.Context(), r, params, rec); err != nil {
		return nil, api.Errorf(http.StatusUnauthorized, api.CodeInvalidToken, "signature verification failed")
	}
	return &Principal{ProjectID: rec.ProjectID, Method: MethodHMAC}, nil
}

func ipAllowed(r *http.Request, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	for _, entry := range allowlist {
		if entry == host {
			return true
		}
		if _, cidr, err := net.ParseCIDR(entry); err == nil && ip != nil && cidr.Contains(ip) {
			return true
		}
	}
	return false
}
