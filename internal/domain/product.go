package domain

import (
	"encoding/json"
	"time"
)

// Product is the local projection of an upstream product. ExternalID is the
// platform-assigned id and is only unique within a tenant; the pair
// (ExternalID, TenantID) identifies a row. Raw keeps the upstream payload
// verbatim so fields added later can be backfilled without a resync.
type Product struct {
	ExternalID  int64           `json:"id" bson:"external_id"`
	TenantID    string          `json:"tenant_id" bson:"tenant_id"`
	Title       string          `json:"title" bson:"title"`
	BodyHTML    string          `json:"body_html" bson:"body_html"`
	Vendor      string          `json:"vendor" bson:"vendor"`
	ProductType string          `json:"product_type" bson:"product_type"`
	Handle      string          `json:"handle" bson:"handle"`
	Status      string          `json:"status" bson:"status"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at"`
	Raw         json.RawMessage `json:"raw,omitempty" bson:"raw,omitempty"`
}
