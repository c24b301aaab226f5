package client

import "encoding/json"

// errorEnvelope is the standard error shape: a code and message under
// "error" plus the request id for support tickets.
type errorEnvelope struct {
	Err struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// Address is a postal address, both as input and in normalized form.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Geo is a geocoded point.
type Geo struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Confidence float64 `json:"confidence,omitempty"`
}

type EmailValidation struct {
	Valid       bool     `json:"valid"`
	Normalized  string   `json:"normalized"`
	Disposable  bool     `json:"disposable"`
	MXFound     bool     `json:"mx_found"`
	ReasonCodes []string `json:"reason_codes"`
	TTLSeconds  int      `json:"ttl_seconds"`
	RequestID   string   `json:"request_id"`
}

type PhoneRequest struct {
	Phone   string `json:"phone"`
	Country string `json:"country,omitempty"`
	SendOTP bool   `json:"send_otp,omitempty"`
}

type PhoneValidation struct {
	Valid          bool     `json:"valid"`
	E164           string   `json:"e164,omitempty"`
	Country        string   `json:"country,omitempty"`
	VerificationID string   `json:"verification_id,omitempty"`
	ReasonCodes    []string `json:"reason_codes"`
	RequestID      string   `json:"request_id"`
}

type CodeVerification struct {
	Valid       bool     `json:"valid"`
	ReasonCodes []string `json:"reason_codes"`
	RequestID   string   `json:"request_id"`
}

type AddressValidation struct {
	Valid           bool     `json:"valid"`
	Normalized      Address  `json:"normalized"`
	Geo             *Geo     `json:"geo,omitempty"`
	POBox           bool     `json:"po_box"`
	PostalCityMatch bool     `json:"postal_city_match"`
	InBounds        bool     `json:"in_bounds"`
	ReasonCodes     []string `json:"reason_codes"`
	TTLSeconds      int      `json:"ttl_seconds"`
	RequestID       string   `json:"request_id"`
}

type AddressNormalization struct {
	Normalized  Address `json:"normalized"`
	AddressHash string  `json:"address_hash"`
	RequestID   string  `json:"request_id"`
}

type TaxIDRequest struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Country string `json:"country,omitempty"`
}

type TaxIDValidation struct {
	Valid       bool     `json:"valid"`
	Type        string   `json:"type"`
	Normalized  string   `json:"normalized"`
	Country     string   `json:"country,omitempty"`
	ReasonCodes []string `json:"reason_codes"`
	RequestID   string   `json:"request_id"`
}

// Name is a personal name in normalized form.
type Name struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type NameValidation struct {
	Valid       bool     `json:"valid"`
	Normalized  Name     `json:"normalized"`
	ReasonCodes []string `json:"reason_codes"`
	RequestID   string   `json:"request_id"`
}

// BatchItem is one unit of a mixed validation batch. Type is one of
// email, phone, address, or tax_id; Payload is the corresponding
// single-validation request body.
type BatchItem struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type BatchItemResult struct {
	Index       int             `json:"index"`
	Type        string          `json:"type"`
	Valid       bool            `json:"valid"`
	Result      json.RawMessage `json:"result,omitempty"`
	ReasonCodes []string        `json:"reason_codes,omitempty"`
}

type BatchValidation struct {
	Items       []BatchItemResult `json:"items"`
	ReasonCodes []string          `json:"reason_codes"`
	RequestID   string            `json:"request_id"`
}

// CustomerQuery describes the customer to search for duplicates of. All
// fields are optional but an empty query matches nothing.
type CustomerQuery struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Match struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
}

type DedupeResult struct {
	Matches         []Match  `json:"matches"`
	SuggestedAction string   `json:"suggested_action"`
	ReasonCodes     []string `json:"reason_codes"`
	RequestID       string   `json:"request_id"`
}

// MergeRequest folds duplicate records into a canonical one. Type is
// customer or address.
type MergeRequest struct {
	Type        string   `json:"type"`
	IDs         []string `json:"ids"`
	CanonicalID string   `json:"canonical_id"`
}

type MergeOutcome struct {
	Type        string   `json:"type"`
	CanonicalID string   `json:"canonical_id"`
	MergedIDs   []string `json:"merged_ids"`
	ReasonCodes []string `json:"reason_codes"`
	RequestID   string   `json:"request_id"`
}

type OrderCustomer struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type OrderRequest struct {
	OrderID         string         `json:"order_id"`
	Customer        OrderCustomer  `json:"customer"`
	ShippingAddress Address        `json:"shipping_address"`
	TotalAmount     float64        `json:"total_amount"`
	Currency        string         `json:"currency"`
	PaymentMethod   string         `json:"payment_method,omitempty"`
	IP              string         `json:"ip,omitempty"`
	Device          map[string]any `json:"device,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type FiredRule struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

type RuleOutcome struct {
	Action     string      `json:"action"`
	Overridden bool        `json:"overridden"`
	Fired      []FiredRule `json:"fired"`
	Skipped    []string    `json:"skipped,omitempty"`
}

type OrderEvaluation struct {
	OrderID         string       `json:"order_id"`
	Duplicate       bool         `json:"duplicate"`
	RiskScore       int          `json:"risk_score"`
	RiskLevel       string       `json:"risk_level"`
	Action          string       `json:"action"`
	Tags            []string     `json:"tags"`
	ReasonCodes     []string     `json:"reason_codes"`
	CustomerMatches []Match      `json:"customer_matches"`
	AddressMatches  []Match      `json:"address_matches"`
	Rules           *RuleOutcome `json:"rules,omitempty"`
	CustomerID      string       `json:"customer_id,omitempty"`
	AddressID       string       `json:"address_id,omitempty"`
	RequestID       string       `json:"request_id"`
}

type Rule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
	Expression  string `json:"expression"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type RuleList struct {
	Rules     []Rule `json:"rules"`
	RequestID string `json:"request_id"`
}

type CatalogEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Expression  string `json:"expression"`
	Action      string `json:"action"`
	Category    string `json:"category"`
}

type RuleCatalog struct {
	Catalog   []CatalogEntry `json:"catalog"`
	RequestID string         `json:"request_id"`
}

type ErrorCode struct {
	Code        string `json:"code"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type ErrorCodeIndex struct {
	ErrorCodes []ErrorCode `json:"error_codes"`
	Categories []string    `json:"categories"`
	RequestID  string      `json:"request_id"`
}

type LogEntry struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Type        string         `json:"type"`
	Endpoint    string         `json:"endpoint"`
	ReasonCodes []string       `json:"reason_codes"`
	Status      string         `json:"status"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

type LogPage struct {
	Logs       []LogEntry `json:"logs"`
	NextCursor string     `json:"next_cursor,omitempty"`
	RequestID  string     `json:"request_id"`
}

type Deletion struct {
	Deleted   bool   `json:"deleted"`
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
}

type UsageRow struct {
	Endpoint string `json:"endpoint"`
	Day      string `json:"day"`
	Count    int64  `json:"count"`
}

type UsageReport struct {
	Usage     []UsageRow `json:"usage"`
	Since     string     `json:"since"`
	RequestID string     `json:"request_id"`
}

type WebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// Webhook is a delivery subscription. Secret is present only in the
// create response and only when the server generated it.
type Webhook struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	LastFiredAt string   `json:"last_fired_at,omitempty"`
	Secret      string   `json:"secret,omitempty"`
	RequestID   string   `json:"request_id,omitempty"`
}

type WebhookList struct {
	Webhooks  []Webhook `json:"webhooks"`
	RequestID string    `json:"request_id"`
}

type Health struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	RequestID string `json:"request_id"`
}
