package server

import (
	"net/http"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/orders"
)

// Shipping-address fields are deliberately unconstrained here: an
// incomplete or bogus address is a risk signal for the evaluator, not a
// schema violation.
var orderEvaluateSchema = api.MustSchema("orders-evaluate.json", `{
	"type": "object",
	"required": ["order_id", "shipping_address", "total_amount", "currency"],
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"customer": {"type": "object"},
		"shipping_address": {"type": "object"},
		"total_amount": {"type": "number"},
		"currency": {"type": "string"},
		"payment_method": {"type": "string"},
		"ip": {"type": "string"},
		"session_id": {"type": "string"}
	}
}`)

type evaluationResponse struct {
	*orders.Evaluation
	RequestID string `json:"request_id"`
}

// handleOrderEvaluate runs the full signal pipeline. The evaluator writes
// its own order_evaluation log entry, so there is no logEvent call here.
func (s *Server) handleOrderEvaluate(w http.ResponseWriter, r *http.Request) {
	var req orders.Request
	if apiErr := api.DecodeValid(r, orderEvaluateSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	projectID := auth.ProjectID(r.Context())
	eval, err := s.deps.Orders.Evaluate(r.Context(), projectID, req)
	if err != nil {
		s.logger.Error("order evaluation failed",
			"project_id", projectID, "order_id", req.OrderID, "error", err)
		api.WriteInternal(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, evaluationResponse{eval, auth.GetRequestID(r.Context())})
}
