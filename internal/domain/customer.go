package domain

import (
	"encoding/json"
	"time"
)

// Customer is the local projection of an upstream customer.
type Customer struct {
	ExternalID  int64           `json:"id" bson:"external_id"`
	TenantID    string          `json:"tenant_id" bson:"tenant_id"`
	FirstName   string          `json:"first_name" bson:"first_name"`
	LastName    string          `json:"last_name" bson:"last_name"`
	Email       string          `json:"email" bson:"email"`
	Phone       string          `json:"phone" bson:"phone"`
	TotalSpent  float64         `json:"total_spent" bson:"total_spent"`
	OrdersCount int             `json:"orders_count" bson:"orders_count"`
	State       string          `json:"state" bson:"state"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at"`
	Raw         json.RawMessage `json:"raw,omitempty" bson:"raw,omitempty"`
}
