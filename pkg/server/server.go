// Package server binds the /v1 HTTP surface: route table, per-class
// middleware chains, payload schemas, and the handlers that call into
// the validators, dedupe engine, and order evaluator.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/limiter"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/observability"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/orders"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

// healthTimeout bounds the storage ping on the health endpoint so a hung
// database cannot stall the probe.
const healthTimeout = 2 * time.Second

// RuleSource lists the rules in effect for a tenant.
type RuleSource interface {
	ListEffective(ctx context.Context, projectID string) ([]rules.Rule, error)
}

// EventLog reads and deletes tenant log rows.
type EventLog interface {
	List(ctx context.Context, projectID string, after *events.Cursor, limit int) ([]events.Entry, error)
	Delete(ctx context.Context, projectID, id string) error
}

// UsageMeter counts endpoint hits and reports per-day aggregates.
type UsageMeter interface {
	Increment(ctx context.Context, projectID, endpoint string, at time.Time) error
	Since(ctx context.Context, projectID string, from time.Time) ([]store.UsageRow, error)
}

// WebhookDirectory manages tenant delivery subscriptions.
type WebhookDirectory interface {
	Create(ctx context.Context, w *store.Webhook) error
	List(ctx context.Context, projectID string) ([]store.Webhook, error)
	Delete(ctx context.Context, projectID, id string) error
}

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuditRecorder appends management actions to the tenant audit chain.
type AuditRecorder interface {
	Append(ctx context.Context, projectID, actor, action, subject string, payload any) (*store.AuditEntry, error)
}

// Deps wires the server. Auth and the store-backed collaborators are
// required; Limits/LimitFor, Idem, Obs, Events, Audit, and Health are
// optional and disable their concern when nil.
type Deps struct {
	Email   *validate.EmailValidator
	Phone   *validate.PhoneValidator
	Address *validate.AddressValidator
	TaxID   *validate.TaxIDValidator
	Batch   *validate.BatchValidator

	Customers *dedupe.CustomerDeduper
	Addresses *dedupe.AddressDeduper
	Merger    *dedupe.Merger

	Orders *orders.Evaluator

	Rules    RuleSource
	Logs     EventLog
	Usage    UsageMeter
	Webhooks WebhookDirectory
	Health   Pinger
	Audit    AuditRecorder

	Events *events.Logger

	Auth     *auth.Options
	Limits   limiter.Store
	LimitFor auth.LimitResolver
	Idem     api.IdempotencyStorer
	Obs      *observability.Provider

	Logger *slog.Logger
}

// Server is the HTTP surface.
type Server struct {
	deps   Deps
	logger *slog.Logger
}

// New builds a Server from its collaborators.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

// Handler assembles the route table. Every route runs behind request-id,
// CORS, and timeout middleware; authenticated routes additionally pass
// auth, rate limiting, usage metering, and idempotent replay.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /health", auth.Public, s.handleHealth)

	s.route(mux, "POST /v1/validate/email", auth.Runtime, s.handleValidateEmail)
	s.route(mux, "POST /v1/validate/phone", auth.Runtime, s.handleValidatePhone)
	s.route(mux, "POST /v1/verify/phone", auth.Runtime, s.handleVerifyPhone)
	s.route(mux, "POST /v1/validate/address", auth.Runtime, s.handleValidateAddress)
	s.route(mux, "POST /v1/validate/tax-id", auth.Runtime, s.handleValidateTaxID)
	s.route(mux, "POST /v1/validate/name", auth.Runtime, s.handleValidateName)
	s.route(mux, "POST /v1/validate/batch", auth.Runtime, s.handleValidateBatch)
	s.route(mux, "POST /v1/normalize/address", auth.Runtime, s.handleNormalizeAddress)

	s.route(mux, "POST /v1/dedupe/customer", auth.Runtime, s.handleDedupeCustomer)
	s.route(mux, "POST /v1/dedupe/address", auth.Runtime, s.handleDedupeAddress)
	s.route(mux, "POST /v1/dedupe/merge", auth.Runtime, s.handleDedupeMerge)

	s.route(mux, "POST /v1/orders/evaluate", auth.Runtime, s.handleOrderEvaluate)

	s.route(mux, "GET /v1/rules", auth.Runtime, s.handleRuleList)
	s.route(mux, "GET /v1/rules/catalog", auth.Runtime, s.handleRuleCatalog)
	s.route(mux, "GET /v1/rules/catalog/error-codes", auth.Runtime, s.handleErrorCodes)

	s.route(mux, "GET /v1/data/logs", auth.Runtime, s.handleLogList)
	s.route(mux, "DELETE /v1/data/logs/{id}", auth.Runtime, s.handleLogDelete)
	s.route(mux, "GET /v1/data/usage", auth.Runtime, s.handleUsage)

	s.route(mux, "POST /v1/webhooks", auth.Management, s.handleWebhookCreate)
	s.route(mux, "GET /v1/webhooks", auth.Management, s.handleWebhookList)
	s.route(mux, "DELETE /v1/webhooks/{id}", auth.Management, s.handleWebhookDelete)

	var h http.Handler = mux
	h = api.TimeoutMiddleware(api.RequestTimeout)(h)
	h = auth.CORSMiddleware(h)
	h = auth.RequestIDMiddleware(h)
	return h
}

// route registers one pattern with its class chain. Order inside the
// chain matters: auth resolves the tenant before the rate limiter needs
// it, metering counts replays, and idempotency wraps only the handler so
// a replayed response skips the handler body alone.
func (s *Server) route(mux *http.ServeMux, pattern string, class auth.Class, h http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	var handler http.Handler = h
	if class != auth.Public {
		if s.deps.Idem != nil {
			handler = api.IdempotencyMiddleware(s.deps.Idem, auth.ProjectID)(handler)
		}
		handler = s.meterUsage(path)(handler)
		if s.deps.Limits != nil && s.deps.LimitFor != nil {
			handler = auth.RateLimitMiddleware(s.deps.Limits, s.deps.LimitFor, class)(handler)
		}
		handler = s.deps.Auth.Require(class)(handler)
	}
	handler = s.track(method, path)(handler)
	mux.Handle(pattern, handler)
}

// track records RED metrics and a server span per route pattern.
func (s *Server) track(method, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.deps.Obs == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx, done := s.deps.Obs.TrackRequest(r.Context(), method, route)
			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			done(sw.status)
		})
	}
}

// meterUsage increments the tenant's per-day counter for the route after
// the handler finishes. Metering is best-effort and survives request
// cancellation so timed-out work is still counted.
func (s *Server) meterUsage(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if s.deps.Usage == nil {
				return
			}
			projectID := auth.ProjectID(r.Context())
			if projectID == "" {
				return
			}
			ctx := context.WithoutCancel(r.Context())
			if err := s.deps.Usage.Increment(ctx, projectID, endpoint, time.Now().UTC()); err != nil {
				s.logger.Warn("usage increment failed", "endpoint", endpoint, "error", err)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// logEvent appends one entry to the tenant event log. Failures never
// surface to the caller; the response already reflects the outcome.
func (s *Server) logEvent(r *http.Request, typ, status string, codes []string, meta map[string]any) {
	if s.deps.Events == nil {
		return
	}
	projectID := auth.ProjectID(r.Context())
	if projectID == "" {
		return
	}
	if codes == nil {
		codes = []string{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["request_id"] = auth.GetRequestID(r.Context())
	entry := &events.Entry{
		ProjectID:   projectID,
		Type:        typ,
		Endpoint:    r.URL.Path,
		ReasonCodes: codes,
		Status:      status,
		Meta:        meta,
	}
	ctx := context.WithoutCancel(r.Context())
	if err := s.deps.Events.Append(ctx, entry); err != nil {
		s.logger.Warn("event append failed",
			"type", typ, "endpoint", entry.Endpoint, "error", err)
	}
}

// recordAudit appends a management action to the tenant audit chain.
// Best-effort: the mutation already committed.
func (s *Server) recordAudit(r *http.Request, action, subject string, payload any) {
	if s.deps.Audit == nil {
		return
	}
	projectID := auth.ProjectID(r.Context())
	if projectID == "" {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.deps.Audit.Append(ctx, projectID, auditActor(r.Context()), action, subject, payload); err != nil {
		s.logger.Warn("audit append failed", "action", action, "subject", subject, "error", err)
	}
}

// auditActor names the caller for audit rows: the user when one is
// known, otherwise the credential method.
func auditActor(ctx context.Context) string {
	p, err := auth.GetPrincipal(ctx)
	if err != nil {
		return "anonymous"
	}
	if p.UserID != "" {
		return p.UserID
	}
	return string(p.Method)
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := healthResponse{Status: "ok", RequestID: auth.GetRequestID(r.Context())}
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.Warn("health: storage unreachable", "error", err)
			out.Status = "degraded"
			out.Database = "unavailable"
			api.WriteJSON(w, http.StatusServiceUnavailable, out)
			return
		}
		out.Database = "ok"
	}
	api.WriteJSON(w, http.StatusOK, out)
}
