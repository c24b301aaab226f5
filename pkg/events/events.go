// Package events is the tenant-visible event log: every completed request
// appends one entry, the logs endpoint pages through them, and the
// retention sweeper archives and deletes the expired ones.
package events

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Event types as they appear in log rows and webhook payloads.
const (
	TypeValidation      = "validation"
	TypeDedupe          = "dedupe"
	TypeMerge           = "merge"
	TypeOrderEvaluation = "order_evaluation"
	TypeWebhookFailure  = "webhook_failure"
)

// Entry is one event-log row. Append-only; rows are only ever removed by
// the retention sweep or an explicit DELETE on the logs endpoint.
type Entry struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Type        string         `json:"type"`
	Endpoint    string         `json:"endpoint"`
	ReasonCodes []string       `json:"reason_codes"`
	Status      string         `json:"status"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Cursor is the opaque pagination token for the logs endpoint: position
// in (created_at, id) order, newest first.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode renders the cursor for the wire.
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a wire cursor. An empty token means "from the top".
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("events: bad cursor: %w", err)
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("events: bad cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("events: bad cursor: %w", err)
	}
	return &Cursor{CreatedAt: ts, ID: id}, nil
}
