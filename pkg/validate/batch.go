package validate

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

// MaxBatchSize caps one batch request.
const MaxBatchSize = 100

// BatchItem is one validation job inside a batch.
type BatchItem struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// BatchItemResult pairs an item's index with its validator output. Result
// holds the matching validator's result struct; unsupported types and
// malformed payloads report through ReasonCodes with a nil Result.
type BatchItemResult struct {
	Index       int      `json:"index"`
	Type        string   `json:"type"`
	Valid       bool     `json:"valid"`
	Result      any      `json:"result,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// BatchResult is the whole batch outcome.
type BatchResult struct {
	Items       []BatchItemResult `json:"items"`
	ReasonCodes []string          `json:"reason_codes"`
}

type emailPayload struct {
	Email string `json:"email"`
}

type phonePayload struct {
	Phone   string `json:"phone"`
	Country string `json:"country,omitempty"`
}

type taxIDPayload struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Country string `json:"country,omitempty"`
}

type namePayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// BatchValidator fans one request out over the per-type validators.
type BatchValidator struct {
	email   *EmailValidator
	phone   *PhoneValidator
	address *AddressValidator
	taxID   *TaxIDValidator
	logger  *slog.Logger
}

// NewBatchValidator wires the fan-out.
func NewBatchValidator(email *EmailValidator, phone *PhoneValidator, address *AddressValidator, taxID *TaxIDValidator, logger *slog.Logger) *BatchValidator {
	return &BatchValidator{email: email, phone: phone, address: address, taxID: taxID, logger: logger}
}

// Validate runs each item through its validator, in order. Oversized
// batches fail whole; bad individual items fail item-local so one rotten
// entry cannot sink the rest.
func (v *BatchValidator) Validate(ctx context.Context, items []BatchItem) *BatchResult {
	if len(items) > MaxBatchSize {
		return &BatchResult{
			Items:       []BatchItemResult{},
			ReasonCodes: []string{reason.BatchSizeExceeded},
		}
	}

	out := &BatchResult{
		Items:       make([]BatchItemResult, 0, len(items)),
		ReasonCodes: []string{},
	}
	failures := 0

	for i, item := range items {
		res := v.validateItem(ctx, i, item)
		if !res.Valid {
			failures++
		}
		out.Items = append(out.Items, res)
	}

	if failures > 0 && failures < len(items) {
		out.ReasonCodes = append(out.ReasonCodes, reason.BatchPartialFailure)
	}
	return out
}

func (v *BatchValidator) validateItem(ctx context.Context, index int, item BatchItem) BatchItemResult {
	out := BatchItemResult{Index: index, Type: item.Type}

	switch item.Type {
	case "email":
		var p emailPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			out.ReasonCodes = []string{reason.EmailInvalidFormat}
			return out
		}
		res := v.email.Validate(ctx, p.Email)
		out.Valid, out.Result, out.ReasonCodes = res.Valid, res, res.ReasonCodes

	case "phone":
		var p phonePayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			out.ReasonCodes = []string{reason.PhoneUnparseable}
			return out
		}
		res := v.phone.Validate(ctx, p.Phone, p.Country, false)
		out.Valid, out.Result, out.ReasonCodes = res.Valid, res, res.ReasonCodes

	case "address":
		var p AddressInput
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			out.ReasonCodes = []string{reason.AddressMissingField}
			return out
		}
		res := v.address.Validate(ctx, p)
		out.Valid, out.Result, out.ReasonCodes = res.Valid, res, res.ReasonCodes

	case "tax_id":
		var p taxIDPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			out.ReasonCodes = []string{reason.TaxIDInvalidFormat}
			return out
		}
		res := v.taxID.Validate(ctx, p.Type, p.Value, p.Country)
		out.Valid, out.Result, out.ReasonCodes = res.Valid, res, res.ReasonCodes

	case "name":
		var p namePayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			out.ReasonCodes = []string{reason.NameInvalidFormat}
			return out
		}
		res := ValidateName(p.FirstName, p.LastName)
		out.Valid, out.Result, out.ReasonCodes = res.Valid, res, res.ReasonCodes

	default:
		out.ReasonCodes = []string{reason.BatchUnsupportedType}
	}
	return out
}
