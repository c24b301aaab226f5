package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/webhooks"
)

var webhookCreateSchema = api.MustSchema("webhooks-create.json", `{
	"type": "object",
	"required": ["url", "events"],
	"properties": {
		"url": {"type": "string"},
		"events": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"secret": {"type": "string"}
	}
}`)

// deliverableEvents are the types a subscription may cover. Failure
// events are excluded: fanout never forwards them, so such a
// subscription could never fire.
var deliverableEvents = []string{
	events.TypeValidation,
	events.TypeDedupe,
	events.TypeMerge,
	events.TypeOrderEvaluation,
}

// webhookBody is the wire form of a subscription. The secret appears
// only in the create response; list responses omit it.
type webhookBody struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Events      []string   `json:"events"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	Secret      string     `json:"secret,omitempty"`
}

type webhookCreateResponse struct {
	webhookBody
	RequestID string `json:"request_id"`
}

func (s *Server) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
		Secret string   `json:"secret"`
	}
	if apiErr := api.DecodeValid(r, webhookCreateSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}

	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		api.WriteBadRequest(w, api.CodeInvalidURL, "webhook url must be an absolute https URL")
		return
	}
	for _, ev := range req.Events {
		if !slices.Contains(deliverableEvents, ev) {
			api.WriteBadRequest(w, api.CodeValidationError,
				fmt.Sprintf("unsupported event type %q", ev))
			return
		}
	}

	secret := req.Secret
	generated := false
	if secret == "" {
		secret, err = webhooks.GenerateSecret()
		if err != nil {
			api.WriteInternal(w, err)
			return
		}
		generated = true
	}

	hook := &store.Webhook{
		ProjectID: auth.ProjectID(r.Context()),
		URL:       req.URL,
		Events:    req.Events,
		Secret:    secret,
	}
	if err := s.deps.Webhooks.Create(r.Context(), hook); err != nil {
		s.logger.Error("webhook create failed", "project_id", hook.ProjectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	s.recordAudit(r, "webhook.created", hook.ID, map[string]any{
		"url": hook.URL, "events": hook.Events,
	})

	body := webhookView(*hook)
	if generated {
		body.Secret = secret
	}
	api.WriteJSON(w, http.StatusCreated, webhookCreateResponse{body, auth.GetRequestID(r.Context())})
}

type webhookListResponse struct {
	Webhooks  []webhookBody `json:"webhooks"`
	RequestID string        `json:"request_id"`
}

func (s *Server) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	projectID := auth.ProjectID(r.Context())
	hooks, err := s.deps.Webhooks.List(r.Context(), projectID)
	if err != nil {
		s.logger.Error("webhook list failed", "project_id", projectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	out := webhookListResponse{Webhooks: make([]webhookBody, 0, len(hooks)), RequestID: auth.GetRequestID(r.Context())}
	for _, h := range hooks {
		out.Webhooks = append(out.Webhooks, webhookView(h))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	projectID := auth.ProjectID(r.Context())
	if err := s.deps.Webhooks.Delete(r.Context(), projectID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "webhook not found")
			return
		}
		s.logger.Error("webhook delete failed", "project_id", projectID, "id", id, "error", err)
		api.WriteInternal(w, err)
		return
	}
	s.recordAudit(r, "webhook.deleted", id, nil)
	api.WriteJSON(w, http.StatusOK, deleteResponse{true, id, auth.GetRequestID(r.Context())})
}

func webhookView(h store.Webhook) webhookBody {
	return webhookBody{
		ID:          h.ID,
		URL:         h.URL,
		Events:      h.Events,
		Status:      h.Status,
		CreatedAt:   h.CreatedAt,
		LastFiredAt: h.LastFiredAt,
	}
}
