package entity

import (
	"time"

	"xenoxify-sync-engine/internal/domain"
)

// MongoTenantDoc represents a tenant in MongoDB. Tenants are provisioned
// out-of-band; the sync engine only ever writes last_synced_at.
type MongoTenantDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	ShopDomain   string     `bson:"shop_domain"`
	AccessToken  string     `bson:"access_token"`
	Status       string     `bson:"status"`
	LastSyncedAt *time.Time `bson:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoTenantDoc) ToDomain() *domain.Tenant {
	return &domain.Tenant{
		ID:           d.ID,
		Name:         d.Name,
		ShopDomain:   d.ShopDomain,
		AccessToken:  d.AccessToken,
		Status:       domain.TenantStatus(d.Status),
		LastSyncedAt: d.LastSyncedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
