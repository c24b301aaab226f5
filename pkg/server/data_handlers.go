package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

const (
	defaultLogPage = 50
	maxLogPage     = 200

	defaultUsageDays = 30
	maxUsageDays     = 365
)

type ruleListResponse struct {
	Rules     []rules.Rule `json:"rules"`
	RequestID string       `json:"request_id"`
}

func (s *Server) handleRuleList(w http.ResponseWriter, r *http.Request) {
	projectID := auth.ProjectID(r.Context())
	list, err := s.deps.Rules.ListEffective(r.Context(), projectID)
	if err != nil {
		s.logger.Error("rule list failed", "project_id", projectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	api.WriteJSON(w, http.StatusOK, ruleListResponse{list, auth.GetRequestID(r.Context())})
}

type ruleCatalogResponse struct {
	Catalog   []rules.CatalogEntry `json:"catalog"`
	RequestID string               `json:"request_id"`
}

func (s *Server) handleRuleCatalog(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, ruleCatalogResponse{rules.Catalog(), auth.GetRequestID(r.Context())})
}

type errorCodesResponse struct {
	ErrorCodes []reason.Entry `json:"error_codes"`
	Categories []string       `json:"categories"`
	RequestID  string         `json:"request_id"`
}

func (s *Server) handleErrorCodes(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, errorCodesResponse{
		ErrorCodes: reason.All(),
		Categories: reason.Categories(),
		RequestID:  auth.GetRequestID(r.Context()),
	})
}

type logListResponse struct {
	Logs       []events.Entry `json:"logs"`
	NextCursor string         `json:"next_cursor,omitempty"`
	RequestID  string         `json:"request_id"`
}

func (s *Server) handleLogList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLogPage
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			api.WriteBadRequest(w, api.CodeValidationError, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogPage)
	}

	var after *events.Cursor
	if token := q.Get("cursor"); token != "" {
		c, err := events.DecodeCursor(token)
		if err != nil {
			api.WriteBadRequest(w, api.CodeValidationError, "malformed cursor")
			return
		}
		after = c
	}

	projectID := auth.ProjectID(r.Context())
	list, err := s.deps.Logs.List(r.Context(), projectID, after, limit)
	if err != nil {
		s.logger.Error("log list failed", "project_id", projectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	if list == nil {
		list = []events.Entry{}
	}

	out := logListResponse{Logs: list, RequestID: auth.GetRequestID(r.Context())}
	if len(list) == limit {
		last := list[len(list)-1]
		out.NextCursor = events.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	api.WriteJSON(w, http.StatusOK, out)
}

type deleteResponse struct {
	Deleted   bool   `json:"deleted"`
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleLogDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	projectID := auth.ProjectID(r.Context())
	if err := s.deps.Logs.Delete(r.Context(), projectID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.WriteNotFound(w, "log entry not found")
			return
		}
		s.logger.Error("log delete failed", "project_id", projectID, "id", id, "error", err)
		api.WriteInternal(w, err)
		return
	}
	s.recordAudit(r, "log.deleted", id, nil)
	api.WriteJSON(w, http.StatusOK, deleteResponse{true, id, auth.GetRequestID(r.Context())})
}

type usageResponse struct {
	Usage     []store.UsageRow `json:"usage"`
	Since     string           `json:"since"`
	RequestID string           `json:"request_id"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	days := defaultUsageDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxUsageDays {
			api.WriteBadRequest(w, api.CodeValidationError, "days must be between 1 and 365")
			return
		}
		days = n
	}
	from := time.Now().UTC().AddDate(0, 0, -days)

	projectID := auth.ProjectID(r.Context())
	rows, err := s.deps.Usage.Since(r.Context(), projectID, from)
	if err != nil {
		s.logger.Error("usage query failed", "project_id", projectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	if rows == nil {
		rows = []store.UsageRow{}
	}
	api.WriteJSON(w, http.StatusOK, usageResponse{
		Usage:     rows,
		Since:     from.Format("2006-01-02"),
		RequestID: auth.GetRequestID(r.Context()),
	})
}
