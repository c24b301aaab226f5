package server

import (
	"net/http"
	"slices"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

// Payload schemas. Presence and shape live here; verdicts about content
// (empty email, unknown tax-id type, oversized batch) stay with the
// validators so the caller gets reason codes, not a 400.
var (
	validateEmailSchema = api.MustSchema("validate-email.json", `{
		"type": "object",
		"required": ["email"],
		"properties": {
			"email": {"type": "string"}
		}
	}`)

	validatePhoneSchema = api.MustSchema("validate-phone.json", `{
		"type": "object",
		"required": ["phone"],
		"properties": {
			"phone": {"type": "string"},
			"country": {"type": "string"},
			"send_otp": {"type": "boolean"}
		}
	}`)

	verifyPhoneSchema = api.MustSchema("verify-phone.json", `{
		"type": "object",
		"required": ["verification_sid", "code"],
		"properties": {
			"verification_sid": {"type": "string"},
			"code": {"type": "string"}
		}
	}`)

	validateAddressSchema = api.MustSchema("validate-address.json", `{
		"type": "object",
		"required": ["line1", "city", "postal_code", "country"],
		"properties": {
			"line1": {"type": "string"},
			"line2": {"type": "string"},
			"city": {"type": "string"},
			"state": {"type": "string"},
			"postal_code": {"type": "string"},
			"country": {"type": "string", "pattern": "^[A-Za-z]{2}$"}
		}
	}`)

	validateTaxIDSchema = api.MustSchema("validate-tax-id.json", `{
		"type": "object",
		"required": ["type", "value"],
		"properties": {
			"type": {"type": "string"},
			"value": {"type": "string"},
			"country": {"type": "string"}
		}
	}`)

	validateNameSchema = api.MustSchema("validate-name.json", `{
		"type": "object",
		"properties": {
			"first_name": {"type": "string"},
			"last_name": {"type": "string"}
		}
	}`)

	validateBatchSchema = api.MustSchema("validate-batch.json", `{
		"type": "object",
		"required": ["items"],
		"properties": {
			"items": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["type", "payload"],
					"properties": {
						"type": {"type": "string"}
					}
				}
			}
		}
	}`)
)

type emailResponse struct {
	*validate.EmailResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleValidateEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if apiErr := api.DecodeValid(r, validateEmailSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := s.deps.Email.Validate(r.Context(), req.Email)
	s.logEvent(r, events.TypeValidation, verdictStatus(res.Valid), res.ReasonCodes, nil)
	api.WriteJSON(w, http.StatusOK, emailResponse{res, auth.GetRequestID(r.Context())})
}

type phoneResponse struct {
	*validate.PhoneResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleValidatePhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone   string `json:"phone"`
		Country string `json:"country"`
		SendOTP bool   `json:"send_otp"`
	}
	if apiErr := api.DecodeValid(r, validatePhoneSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := s.deps.Phone.Validate(r.Context(), req.Phone, req.Country, req.SendOTP)
	s.logEvent(r, events.TypeValidation, verdictStatus(res.Valid), res.ReasonCodes, nil)
	api.WriteJSON(w, http.StatusOK, phoneResponse{res, auth.GetRequestID(r.Context())})
}

type otpResponse struct {
	*validate.OTPResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleVerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VerificationSID string `json:"verification_sid"`
		Code            string `json:"code"`
	}
	if apiErr := api.DecodeValid(r, verifyPhoneSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := s.deps.Phone.VerifyOTP(r.Context(), req.VerificationSID, req.Code)
	s.logEvent(r, events.TypeValidation, verdictStatus(res.Valid), res.ReasonCodes, nil)
	api.WriteJSON(w, http.StatusOK, otpResponse{res, auth.GetRequestID(r.Context())})
}

type addressResponse struct {
	*validate.AddressResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	var req validate.AddressInput
	if apiErr := api.DecodeValid(r, validateAddressSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := s.deps.Address.Validate(r.Context(), req)
	s.logEvent(r, events.TypeValidation, verdictStatus(res.Valid), res.ReasonCodes, nil)
	api.WriteJSON(w, http.StatusOK, addressResponse{res, auth.GetRequestID(r.Context())})
}

type taxIDResponse struct {
	*validate.TaxIDResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleValidateTaxID(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string `json:"type"`
		Value   string `json:"value"`
		Country string `json:"country"`
	}
	if apiErr := api.DecodeValid(r, validateTaxIDSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := s.deps.TaxID.Validate(r.Context(), req.Type, req.Value, req.Country)
	s.logEvent(r, events.TypeValidation, verdictStatus(res.Valid), res.ReasonCodes, nil)
	api.WriteJSON(w, http.StatusOK, taxIDResponse{res, auth.GetRequestID(r.Context())})
}

type nameResponse struct {
	*validate.NameResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleValidateName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if apiErr := api.DecodeValid(r, validateNameSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := validate.ValidateName(req.FirstName, req.LastName)
	s.logEvent(r, events.TypeValidation, verdictStatus(res.Valid), res.ReasonCodes, nil)
	api.WriteJSON(w, http.StatusOK, nameResponse{res, auth.GetRequestID(r.Context())})
}

type batchResponse struct {
	*validate.BatchResult
	RequestID string `json:"request_id"`
}

func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []validate.BatchItem `json:"items"`
	}
	if apiErr := api.DecodeValid(r, validateBatchSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	res := s.deps.Batch.Validate(r.Context(), req.Items)
	s.logEvent(r, events.TypeValidation, batchStatus(res), res.ReasonCodes, map[string]any{
		"items": len(req.Items),
	})
	api.WriteJSON(w, http.StatusOK, batchResponse{res, auth.GetRequestID(r.Context())})
}

type normalizeResponse struct {
	Normalized  validate.NormalizedAddress `json:"normalized"`
	AddressHash string                     `json:"address_hash"`
	RequestID   string                     `json:"request_id"`
}

func (s *Server) handleNormalizeAddress(w http.ResponseWriter, r *http.Request) {
	var req validate.AddressInput
	if apiErr := api.DecodeValid(r, validateAddressSchema, &req); apiErr != nil {
		api.WriteAPIError(w, apiErr)
		return
	}
	normalized := validate.NormalizeAddress(req)
	s.logEvent(r, events.TypeValidation, "ok", nil, nil)
	api.WriteJSON(w, http.StatusOK, normalizeResponse{
		Normalized:  normalized,
		AddressHash: validate.AddressHash(normalized),
		RequestID:   auth.GetRequestID(r.Context()),
	})
}

func verdictStatus(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

// batchStatus grades the whole batch for the event log: rejected batches
// never ran, failed batches ran with zero valid items.
func batchStatus(res *validate.BatchResult) string {
	if slices.Contains(res.ReasonCodes, reason.BatchSizeExceeded) {
		return "rejected"
	}
	failures := 0
	for _, item := range res.Items {
		if !item.Valid {
			failures++
		}
	}
	switch {
	case failures == 0:
		return "ok"
	case failures == len(res.Items):
		return "failed"
	default:
		return "partial_failure"
	}
}
