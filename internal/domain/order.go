package domain

import (
	"encoding/json"
	"time"
)

// Order is the local projection of an upstream order. CustomerID is a
// denormalized reference to the upstream customer id and may be nil for
// guest checkouts.
type Order struct {
	ExternalID        int64           `json:"id" bson:"external_id"`
	TenantID          string          `json:"tenant_id" bson:"tenant_id"`
	OrderNumber       int64           `json:"order_number" bson:"order_number"`
	TotalPrice        float64         `json:"total_price" bson:"total_price"`
	Currency          string          `json:"currency" bson:"currency"`
	CustomerID        *int64          `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	FinancialStatus   string          `json:"financial_status" bson:"financial_status"`
	FulfillmentStatus string          `json:"fulfillment_status" bson:"fulfillment_status"`
	CreatedAt         time.Time       `json:"created_at" bson:"created_at"`
	ProcessedAt       time.Time       `json:"processed_at" bson:"processed_at"`
	Raw               json.RawMessage `json:"raw,omitempty" bson:"raw,omitempty"`
}
