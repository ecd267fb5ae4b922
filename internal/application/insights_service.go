package application

import (
	"context"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// InsightsService serves pre-aggregated analytics from the local mirror, so
// dashboard reads never touch the upstream API. Figures are only as fresh as
// each tenant's last successful sync.
type InsightsService struct {
	store   ports.InsightsRepository
	tenants ports.TenantRepository
	logger  zerolog.Logger
}

// NewInsightsService creates a new insights service
func NewInsightsService(store ports.InsightsRepository, tenants ports.TenantRepository, logger zerolog.Logger) *InsightsService {
	return &InsightsService{
		store:   store,
		tenants: tenants,
		logger:  logger,
	}
}

// Summary aggregates dashboard figures for a tenant over the trailing period.
func (s *InsightsService) Summary(ctx context.Context, tenantID string, periodDays int) (*domain.InsightsSummary, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}

	since := time.Now().AddDate(0, 0, -periodDays)
	summary, err := s.store.OrderSummary(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	summary.PeriodDays = periodDays
	return summary, nil
}

// TopCustomers ranks a tenant's customers by cumulative order value.
func (s *InsightsService) TopCustomers(ctx context.Context, tenantID string, limit int) ([]domain.CustomerSpend, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return s.store.TopCustomers(ctx, tenantID, limit)
}
