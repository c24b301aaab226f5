package server

import (
	"errors"
	"net/http"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

var (
	dedupeCustomerSchema = api.MustSchema("dedupe-customer.json", `{
		"type": "object",
		"properties": {
			"email": {"type": "string"},
			"phone": {"type": "string"},
			"country": {"type": "string"},
			"first_name": {"type": "string"},
			"last_name": {"type": "string"}
		}
	}`)

	dedupeMergeSchema = api.MustSchema("dedupe-merge.json", `{
		"type": "object",
		"required": ["type", "ids", "canonical_id"],
		"properties": {
			"type": {"type": "string"},
			"ids": {"type": "array", "items": {"type": "string"}},
			"canonical_id": {"type": "string"}
		}
	}`)
)

type dedupeResponse struct {
	*dedupe.Result
	RequestID string `json:"request_id"`
}

func (s *Server) handleDedupeCustomer(w http.ResponseWriter, r *http.Request) {
	var req dedupe.CustomerInput
	if apiErr := api.DecodeValid(r, dedupeCustomerSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	projectID := auth.ProjectID(r.Context())
	res, err := s.deps.Customers.Check(r.Context(), projectID, req)
	if err != nil {
		s.logger.Error("customer dedupe failed", "project_id", projectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	s.logEvent(r, events.TypeDedupe, res.SuggestedAction, res.ReasonCodes, map[string]any{
		"matches": len(res.Matches),
	})
	api.WriteJSON(w, http.StatusOK, dedupeResponse{res, auth.GetRequestID(r.Context())})
}

func (s *Server) handleDedupeAddress(w http.ResponseWriter, r *http.Request) {
	var req validate.AddressInput
	if apiErr := api.DecodeValid(r, validateAddressSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	projectID := auth.ProjectID(r.Context())
	res, err := s.deps.Addresses.Check(r.Context(), projectID, req)
	if err != nil {
		s.logger.Error("address dedupe failed", "project_id", projectID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	s.logEvent(r, events.TypeDedupe, res.SuggestedAction, res.ReasonCodes, map[string]any{
		"matches": len(res.Matches),
	})
	api.WriteJSON(w, http.StatusOK, dedupeResponse{res, auth.GetRequestID(r.Context())})
}

type mergeResponse struct {
	*dedupe.MergeResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleDedupeMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type        string   `json:"type"`
		IDs         []string `json:"ids"`
		CanonicalID string   `json:"canonical_id"`
	}
	if apiErr := api.DecodeValid(r, dedupeMergeSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	projectID := auth.ProjectID(r.Context())
	res, err := s.deps.Merger.Merge(r.Context(), projectID, req.Type, req.CanonicalID, req.IDs)
	switch {
	case err == nil:
	case errors.Is(err, dedupe.ErrUnknownMergeType):
		api.WriteBadRequest(w, api.CodeInvalidType, "merge type must be customer or address")
		return
	case errors.Is(err, dedupe.ErrInvalidMergeIDs):
		api.WriteBadRequest(w, api.CodeInvalidIDs, "merge needs a canonical id and at least one distinct duplicate id")
		return
	case errors.Is(err, dedupe.ErrCanonicalNotFound):
		api.WriteNotFound(w, "canonical record not found")
		return
	case errors.Is(err, dedupe.ErrDuplicateNotFound):
		api.WriteNotFound(w, "duplicate record not found")
		return
	default:
		s.logger.Error("merge failed", "project_id", projectID, "type", req.Type, "error", err)
		api.WriteInternal(w, err)
		return
	}
	// A merge lands in both the event log and the audit chain: the log is
	// what webhooks and the logs endpoint see, the chain is the tamper
	// evidence for destructive management actions.
	s.logEvent(r, events.TypeMerge, "merged", res.ReasonCodes, map[string]any{
		"type":         res.Type,
		"canonical_id": res.CanonicalID,
		"merged":       len(res.MergedIDs),
	})
	s.recordAudit(r, "records.merged", res.CanonicalID, map[string]any{
		"type": res.Type, "merged_ids": res.MergedIDs,
	})
	api.WriteJSON(w, http.StatusOK, mergeResponse{res, auth.GetRequestID(r.Context())})
}
