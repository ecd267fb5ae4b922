package domain

import "time"

// TenantStatus is the provisioning state of a tenant.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// Tenant represents one connected store. Every tenant carries its own
// upstream credential and is synced in isolation from the others.
// The sync engine only ever writes LastSyncedAt; all other fields are
// owned by the provisioning flow.
type Tenant struct {
	ID           string       `json:"id" bson:"_id"`
	Name         string       `json:"name" bson:"name"`
	ShopDomain   string       `json:"shop_domain" bson:"shop_domain"`
	AccessToken  string       `json:"-" bson:"access_token"`
	Status       TenantStatus `json:"status" bson:"status"`
	LastSyncedAt *time.Time   `json:"last_synced_at,omitempty" bson:"last_synced_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" bson:"updated_at"`
}

// IsActive reports whether the tenant should be picked up by scheduled syncs.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
