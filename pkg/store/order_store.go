package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Order is a per-tenant order row keyed by the caller's order_id. The
// customer and shipping address are stored both as snapshots (what the
// caller sent) and as references to the deduped rows.
type Order struct {
	ID               string
	ProjectID        string
	OrderID          string
	CustomerID       string
	AddressID        string
	CustomerSnapshot json.RawMessage
	AddressSnapshot  json.RawMessage
	TotalAmount      float64
	Currency         string
	PaymentMethod    string
	Status           string
	RiskScore        int
	RiskTags         []string
	ReasonCodes      []string
	CreatedAt        time.Time
}

type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

const orderExistsQuery = `
	SELECT 1 FROM orders WHERE project_id = $1 AND order_id = $2
`

// Exists reports whether the tenant already has this order_id.
func (s *OrderStore) Exists(ctx context.Context, projectID, orderID string) (bool, error) {
	var one int
	err := s.db.sql.QueryRowContext(ctx, orderExistsQuery, projectID, orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: order exists: %w", err)
	}
	return true, nil
}

const insertOrderQuery = `
	INSERT INTO orders
		(id, project_id, order_id, customer_id, address_id, customer_snapshot, address_snapshot,
		 total_amount, currency, payment_method, status, risk_score, risk_tags, reason_codes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (project_id, order_id) DO NOTHING
`

// Insert writes the order once per (project_id, order_id); a replay is a
// no-op and returns false.
func (s *OrderStore) Insert(ctx context.Context, o *Order) (bool, error) {
	if o.ID == "" {
		o.ID = newID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	tags, err := jsonText(o.RiskTags)
	if err != nil {
		return false, err
	}
	codes, err := jsonText(o.ReasonCodes)
	if err != nil {
		return false, err
	}
	customerSnap := string(o.CustomerSnapshot)
	if customerSnap == "" {
		customerSnap = "{}"
	}
	addressSnap := string(o.AddressSnapshot)
	if addressSnap == "" {
		addressSnap = "{}"
	}

	res, err := s.db.sql.ExecContext(ctx, insertOrderQuery,
		o.ID, o.ProjectID, o.OrderID, o.CustomerID, o.AddressID, customerSnap, addressSnap,
		o.TotalAmount, o.Currency, o.PaymentMethod, o.Status, o.RiskScore, tags, codes, sqlTime(o.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("store: insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: insert order: %w", err)
	}
	return n > 0, nil
}

const getOrderQuery = `
	SELECT id, project_id, order_id, customer_id, address_id, customer_snapshot, address_snapshot,
	       total_amount, currency, payment_method, status, risk_score, risk_tags, reason_codes, created_at
	FROM orders
	WHERE project_id = $1 AND order_id = $2
`

// Get returns the order by the caller's order_id or ErrNotFound.
func (s *OrderStore) Get(ctx context.Context, projectID, orderID string) (*Order, error) {
	row := s.db.sql.QueryRowContext(ctx, getOrderQuery, projectID, orderID)

	var o Order
	var customerSnap, addressSnap string
	var tags, codes sql.NullString
	var created string
	err := row.Scan(&o.ID, &o.ProjectID, &o.OrderID, &o.CustomerID, &o.AddressID, &customerSnap, &addressSnap,
		&o.TotalAmount, &o.Currency, &o.PaymentMethod, &o.Status, &o.RiskScore, &tags, &codes, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get order: %w", err)
	}
	o.CustomerSnapshot = json.RawMessage(customerSnap)
	o.AddressSnapshot = json.RawMessage(addressSnap)
	if err := fromJSONText(tags, &o.RiskTags); err != nil {
		return nil, err
	}
	if err := fromJSONText(codes, &o.ReasonCodes); err != nil {
		return nil, err
	}
	o.CreatedAt = parseSQLTime(created)
	return &o, nil
}
