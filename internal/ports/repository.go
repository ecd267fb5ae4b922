package ports

import (
	"context"
	"time"

	"xenoxify-sync-engine/internal/domain"
)

// TenantRepository defines the read surface over provisioned tenants plus the
// single field the sync engine owns, the last-synced watermark.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	ListActive(ctx context.Context) ([]*domain.Tenant, error)
	// ListActiveUpdatedSince narrows ListActive to tenants touched within the
	// incremental window.
	ListActiveUpdatedSince(ctx context.Context, since time.Time) ([]*domain.Tenant, error)
	SetLastSyncedAt(ctx context.Context, id string, syncedAt time.Time) error
}

// EntityRepository performs idempotent create-or-update writes keyed by
// (external id, tenant id). Implementations must set created_at only on first
// insert and must never let writes for one tenant touch another tenant's
// rows, even when external ids collide numerically.
type EntityRepository interface {
	UpsertProduct(ctx context.Context, p *domain.Product) error
	UpsertCustomer(ctx context.Context, c *domain.Customer) error
	UpsertOrder(ctx context.Context, o *domain.Order) error
}

// InsightsRepository serves pre-aggregated reads from the local mirror.
type InsightsRepository interface {
	OrderSummary(ctx context.Context, tenantID string, since time.Time) (*domain.InsightsSummary, error)
	TopCustomers(ctx context.Context, tenantID string, limit int) ([]domain.CustomerSpend, error)
}
