// Package orders composes validation, dedupe, and rule signals into a
// risk score and a final action for incoming orders.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
)

// Risk weights per signal. Raw risk is their sum, clamped to 100.
const (
	weightDuplicateOrder     = 50
	weightCustomerDedupe     = 20
	weightAddressDedupe      = 15
	weightPOBox              = 30
	weightPostalCityMismatch = 10
	weightOutOfBounds        = 40
	weightGeocodeFailed      = 20
	weightInvalidAddress     = 30
	weightInvalidEmail       = 25
	weightInvalidPhone       = 25
	weightCOD                = 20
	weightHighRiskRTO        = 50
	weightHighValue          = 15
)

const (
	highValueThreshold = 1000.0
	// firstSeenCap bounds the decision score for never-seen orders so a
	// brand-new order cannot reach the block threshold on its own.
	firstSeenCap   = 60
	blockThreshold = 70
	holdThreshold  = 40
)

// Tags attached to evaluations; stored with the order row and returned
// to the caller.
const (
	TagDuplicateOrder    = "duplicate_order"
	TagDuplicateCustomer = "potential_duplicate_customer"
	TagDuplicateAddress  = "potential_duplicate_address"
	TagPOBox             = "po_box_detected"
	TagDisposableEmail   = "disposable_email"
	TagCOD               = "cod_order"
	TagHighRiskRTO       = "high_risk_rto"
	TagHighValue         = "high_value_order"
)

const evaluateEndpoint = "/v1/orders/evaluate"

// CustomerInfo is the order's customer block.
type CustomerInfo struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Request is one order to evaluate.
type Request struct {
	OrderID         string                `json:"order_id"`
	Customer        CustomerInfo          `json:"customer"`
	ShippingAddress validate.AddressInput `json:"shipping_address"`
	TotalAmount     float64               `json:"total_amount"`
	Currency        string                `json:"currency"`
	PaymentMethod   string                `json:"payment_method,omitempty"`
	IP              string                `json:"ip,omitempty"`
	Device          map[string]any        `json:"device,omitempty"`
	SessionID       string                `json:"session_id,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
}

// Evaluation is the composed verdict.
type Evaluation struct {
	OrderID         string         `json:"order_id"`
	Duplicate       bool           `json:"duplicate"`
	RiskScore       int            `json:"risk_score"`
	RiskLevel       string         `json:"risk_level"`
	Action          string         `json:"action"`
	Tags            []string       `json:"tags"`
	ReasonCodes     []string       `json:"reason_codes"`
	CustomerMatches []dedupe.Match `json:"customer_matches"`
	AddressMatches  []dedupe.Match `json:"address_matches"`
	Rules           *rules.Outcome `json:"rules,omitempty"`
	CustomerID      string         `json:"customer_id,omitempty"`
	AddressID       string         `json:"address_id,omitempty"`
}

// EmailChecker validates one email address.
type EmailChecker interface {
	Validate(ctx context.Context, raw string) *validate.EmailResult
}

// PhoneChecker validates one phone number.
type PhoneChecker interface {
	Validate(ctx context.Context, raw, countryHint string, sendOTP bool) *validate.PhoneResult
}

// AddressChecker validates and geocodes one address.
type AddressChecker interface {
	Validate(ctx context.Context, in validate.AddressInput) *validate.AddressResult
}

// CustomerMatcher runs customer dedupe against tenant history.
type CustomerMatcher interface {
	Check(ctx context.Context, projectID string, in dedupe.CustomerInput) (*dedupe.Result, error)
}

// AddressMatcher runs address dedupe against tenant history.
type AddressMatcher interface {
	Check(ctx context.Context, projectID string, in validate.AddressInput) (*dedupe.Result, error)
}

// OrderLedger checks and records seen orders.
type OrderLedger interface {
	Exists(ctx context.Context, projectID, orderID string) (bool, error)
	Insert(ctx context.Context, o *store.Order) (bool, error)
}

// CustomerDirectory upserts customer identity rows.
type CustomerDirectory interface {
	Upsert(ctx context.Context, c *store.Customer) (string, error)
}

// AddressDirectory upserts normalized address rows.
type AddressDirectory interface {
	Upsert(ctx context.Context, a *store.Address) (string, error)
}

// RuleSource lists the rules in effect for a tenant.
type RuleSource interface {
	ListEffective(ctx context.Context, projectID string) ([]rules.Rule, error)
}

// EventSink receives the order_evaluation log entry.
type EventSink interface {
	Append(ctx context.Context, e *events.Entry) error
}

// Deps wires the evaluator. Rules, Engine, and Events are optional;
// a nil pair disables rule overrides, a nil sink skips logging.
type Deps struct {
	Email     EmailChecker
	Phone     PhoneChecker
	Address   AddressChecker
	Customers CustomerMatcher
	Addresses AddressMatcher

	Orders      OrderLedger
	CustomerDir CustomerDirectory
	AddressDir  AddressDirectory

	Rules  RuleSource
	Engine *rules.Engine
	Events EventSink

	Logger *slog.Logger
}

// Evaluator runs the fixed signal pipeline over one order.
type Evaluator struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Evaluator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{deps: deps, logger: logger}
}

// Evaluate runs the signal steps in their fixed order, scores the order,
// resolves the final action, and persists the customer, address, and
// order rows. Store failures on the duplicate check or the order insert
// are returned; everything downstream of the verdict degrades to a
// warning.
func (e *Evaluator) Evaluate(ctx context.Context, projectID string, req Request) (*Evaluation, error) {
	out := &Evaluation{OrderID: req.OrderID}
	raw := 0
	var codes []string

	duplicate, err := e.deps.Orders.Exists(ctx, projectID, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("orders: duplicate check: %w", err)
	}
	out.Duplicate = duplicate
	if duplicate {
		raw += weightDuplicateOrder
		out.Tags = append(out.Tags, TagDuplicateOrder)
		codes = append(codes, reason.OrderDuplicateDetected)
	}

	custMatches, err := e.deps.Customers.Check(ctx, projectID, dedupe.CustomerInput{
		Email:     req.Customer.Email,
		Phone:     req.Customer.Phone,
		Country:   req.ShippingAddress.Country,
		FirstName: req.Customer.FirstName,
		LastName:  req.Customer.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("orders: customer dedupe: %w", err)
	}
	out.CustomerMatches = custMatches.Matches
	if len(custMatches.Matches) > 0 {
		raw += weightCustomerDedupe
		out.Tags = append(out.Tags, TagDuplicateCustomer)
		codes = append(codes, reason.OrderCustomerDedupeMatch)
	}

	addrRes := e.deps.Address.Validate(ctx, req.ShippingAddress)
	codes = append(codes, addrRes.ReasonCodes...)

	addrMatches, err := e.deps.Addresses.Check(ctx, projectID, req.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("orders: address dedupe: %w", err)
	}
	out.AddressMatches = addrMatches.Matches
	if len(addrMatches.Matches) > 0 {
		raw += weightAddressDedupe
		out.Tags = append(out.Tags, TagDuplicateAddress)
		codes = append(codes, reason.OrderAddressDedupeMatch)
	}

	if addrRes.POBox {
		raw += weightPOBox
		out.Tags = append(out.Tags, TagPOBox)
		codes = append(codes, reason.OrderPOBoxBlock)
	}
	if !addrRes.PostalCityMatch {
		raw += weightPostalCityMismatch
	}
	switch {
	case addrRes.Geo == nil:
		raw += weightGeocodeFailed
	case !addrRes.InBounds:
		raw += weightOutOfBounds
	}
	if !addrRes.Valid {
		raw += weightInvalidAddress
	}

	var emailRes *validate.EmailResult
	if req.Customer.Email != "" {
		emailRes = e.deps.Email.Validate(ctx, req.Customer.Email)
		codes = append(codes, emailRes.ReasonCodes...)
		if !emailRes.Valid {
			raw += weightInvalidEmail
		}
		if emailRes.Disposable {
			out.Tags = append(out.Tags, TagDisposableEmail)
			codes = append(codes, reason.OrderDisposableEmail)
		}
	}

	var phoneRes *validate.PhoneResult
	if req.Customer.Phone != "" {
		phoneRes = e.deps.Phone.Validate(ctx, req.Customer.Phone, req.ShippingAddress.Country, false)
		codes = append(codes, phoneRes.ReasonCodes...)
		if !phoneRes.Valid {
			raw += weightInvalidPhone
		}
	}

	if strings.EqualFold(req.PaymentMethod, "cod") {
		raw += weightCOD
		out.Tags = append(out.Tags, TagCOD)
		if e.highRTORisk(custMatches, addrRes, phoneRes, emailRes) {
			raw += weightHighRiskRTO
			out.Tags = append(out.Tags, TagHighRiskRTO)
			codes = append(codes, reason.OrderHighRiskRTO)
		}
	}

	if req.TotalAmount > highValueThreshold {
		raw += weightHighValue
		out.Tags = append(out.Tags, TagHighValue)
		codes = append(codes, reason.OrderHighValue)
	}

	out.RiskScore = raw
	if out.RiskScore > 100 {
		out.RiskScore = 100
	}
	out.RiskLevel = rules.RiskLevel(out.RiskScore)
	out.ReasonCodes = reason.Merge(codes)

	outcome := e.applyRules(ctx, projectID, req, out, emailRes, phoneRes, addrRes)

	decision := out.RiskScore
	if !duplicate && decision > firstSeenCap {
		decision = firstSeenCap
	}
	out.Action = actionForScore(decision)
	if outcome != nil && outcome.Overridden {
		out.Action = orderAction(outcome.Action)
	}

	e.persist(ctx, projectID, req, out, addrRes, emailRes, phoneRes)
	return out, nil
}

// highRTORisk detects the cash-on-delivery return-to-origin pattern:
// a customer with no history, a region that does not line up, and a
// throwaway email.
func (e *Evaluator) highRTORisk(custMatches *dedupe.Result, addrRes *validate.AddressResult, phoneRes *validate.PhoneResult, emailRes *validate.EmailResult) bool {
	newCustomer := len(custMatches.Matches) == 0

	regionMismatch := !addrRes.PostalCityMatch
	if phoneRes != nil && phoneRes.Country != "" && addrRes.Normalized.Country != "" &&
		!strings.EqualFold(phoneRes.Country, addrRes.Normalized.Country) {
		regionMismatch = true
	}

	disposable := emailRes != nil && emailRes.Disposable
	return newCustomer && regionMismatch && disposable
}

// applyRules runs the tenant's rules over the full context. Failures to
// list or evaluate rules never fail the order; the score thresholds
// still decide.
func (e *Evaluator) applyRules(ctx context.Context, projectID string, req Request, eval *Evaluation, emailRes *validate.EmailResult, phoneRes *validate.PhoneResult, addrRes *validate.AddressResult) *rules.Outcome {
	if e.deps.Engine == nil || e.deps.Rules == nil {
		return nil
	}
	rs, err := e.deps.Rules.ListEffective(ctx, projectID)
	if err != nil {
		e.logger.Warn("rule listing failed; falling back to score thresholds",
			"project_id", projectID, "error", err)
		return nil
	}
	if len(rs) == 0 {
		return nil
	}

	ec := &rules.EvaluationContext{
		Email:                 normalizedEmail(req.Customer.Email, emailRes),
		Phone:                 normalizedPhone(req.Customer.Phone, phoneRes),
		Address:               addressFacts(addrRes),
		Name:                  validate.NormalizeFullName(req.Customer.FirstName, req.Customer.LastName),
		IP:                    req.IP,
		Device:                req.Device,
		RiskScore:             eval.RiskScore,
		RiskLevel:             eval.RiskLevel,
		Metadata:              req.Metadata,
		TransactionAmount:     req.TotalAmount,
		Currency:              req.Currency,
		SessionID:             req.SessionID,
		CustomerDedupeMatches: contextMatches(eval.CustomerMatches),
		AddressDedupeMatches:  contextMatches(eval.AddressMatches),
	}
	outcome := e.deps.Engine.Evaluate(ctx, rs, ec)
	eval.Rules = outcome
	return outcome
}

// persist upserts the customer and address rows, records the order, and
// appends the evaluation to the tenant log. Only the order insert is
// allowed to fail loudly enough to log an error; the verdict already
// stands.
func (e *Evaluator) persist(ctx context.Context, projectID string, req Request, eval *Evaluation, addrRes *validate.AddressResult, emailRes *validate.EmailResult, phoneRes *validate.PhoneResult) {
	if req.Customer.Email != "" || req.Customer.Phone != "" || req.Customer.FirstName != "" || req.Customer.LastName != "" {
		id, err := e.deps.CustomerDir.Upsert(ctx, &store.Customer{
			ProjectID:       projectID,
			Email:           req.Customer.Email,
			NormalizedEmail: normalizedEmail(req.Customer.Email, emailRes),
			Phone:           req.Customer.Phone,
			NormalizedPhone: normalizedPhone(req.Customer.Phone, phoneRes),
			FirstName:       req.Customer.FirstName,
			LastName:        req.Customer.LastName,
		})
		if err != nil {
			e.logger.Warn("customer upsert failed", "project_id", projectID, "error", err)
		} else {
			eval.CustomerID = id
		}
	}

	n := addrRes.Normalized
	if n.Line1 != "" || n.City != "" {
		addr := &store.Address{
			ProjectID:   projectID,
			Line1:       n.Line1,
			Line2:       n.Line2,
			City:        n.City,
			State:       n.State,
			PostalCode:  n.PostalCode,
			Country:     n.Country,
			AddressHash: validate.AddressHash(n),
		}
		if addrRes.Geo != nil {
			lat, lng := addrRes.Geo.Lat, addrRes.Geo.Lng
			addr.Lat, addr.Lng = &lat, &lng
		}
		id, err := e.deps.AddressDir.Upsert(ctx, addr)
		if err != nil {
			e.logger.Warn("address upsert failed", "project_id", projectID, "error", err)
		} else {
			eval.AddressID = id
		}
	}

	if !eval.Duplicate {
		custSnap, _ := json.Marshal(req.Customer)
		addrSnap, _ := json.Marshal(req.ShippingAddress)
		if _, err := e.deps.Orders.Insert(ctx, &store.Order{
			ProjectID:        projectID,
			OrderID:          req.OrderID,
			CustomerID:       eval.CustomerID,
			AddressID:        eval.AddressID,
			CustomerSnapshot: custSnap,
			AddressSnapshot:  addrSnap,
			TotalAmount:      req.TotalAmount,
			Currency:         req.Currency,
			PaymentMethod:    req.PaymentMethod,
			Status:           eval.Action,
			RiskScore:        eval.RiskScore,
			RiskTags:         eval.Tags,
			ReasonCodes:      eval.ReasonCodes,
		}); err != nil {
			e.logger.Error("order insert failed", "project_id", projectID, "order_id", req.OrderID, "error", err)
		}
	}

	if e.deps.Events != nil {
		err := e.deps.Events.Append(ctx, &events.Entry{
			ProjectID:   projectID,
			Type:        events.TypeOrderEvaluation,
			Endpoint:    evaluateEndpoint,
			ReasonCodes: eval.ReasonCodes,
			Status:      eval.Action,
			Meta: map[string]any{
				"order_id":   req.OrderID,
				"risk_score": eval.RiskScore,
				"risk_level": eval.RiskLevel,
				"action":     eval.Action,
				"tags":       eval.Tags,
				"duplicate":  eval.Duplicate,
			},
		})
		if err != nil {
			e.logger.Warn("order event append failed", "project_id", projectID, "error", err)
		}
	}
}

// actionForScore applies the order thresholds.
func actionForScore(score int) string {
	switch {
	case score >= blockThreshold:
		return string(rules.ActionBlock)
	case score >= holdThreshold:
		return string(rules.ActionHold)
	default:
		return string(rules.ActionApprove)
	}
}

// orderAction maps a rule outcome into the order vocabulary; review is
// an aggregation-only state and lands as hold.
func orderAction(a rules.Action) string {
	if a == rules.ActionReview {
		return string(rules.ActionHold)
	}
	return string(a)
}

func normalizedEmail(raw string, res *validate.EmailResult) string {
	if res != nil && res.Normalized != "" {
		return res.Normalized
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizedPhone(raw string, res *validate.PhoneResult) string {
	if res != nil && res.E164 != "" {
		return res.E164
	}
	return strings.TrimSpace(raw)
}

// addressFacts is the address map rule expressions see.
func addressFacts(res *validate.AddressResult) map[string]any {
	n := res.Normalized
	return map[string]any{
		"line1":             n.Line1,
		"line2":             n.Line2,
		"city":              n.City,
		"state":             n.State,
		"postal_code":       n.PostalCode,
		"country":           n.Country,
		"valid":             res.Valid,
		"po_box":            res.POBox,
		"postal_city_match": res.PostalCityMatch,
		"in_bounds":         res.InBounds,
	}
}

func contextMatches(ms []dedupe.Match) []rules.DedupeMatch {
	out := make([]rules.DedupeMatch, 0, len(ms))
	for _, m := range ms {
		out = append(out, rules.DedupeMatch{ID: m.ID, Score: m.Score, MatchType: m.MatchType})
	}
	return out
}
