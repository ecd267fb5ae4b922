package application

import (
	"context"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TenantSyncOrchestrator runs the fixed stage sequence for one tenant:
// products, then customers, then orders. A stage's terminal failure is
// logged and the run advances to the next stage, so one broken collection
// does not block the others. The tenant watermark moves only when every
// stage finishes clean.
type TenantSyncOrchestrator struct {
	task    *EntitySyncTask
	tenants ports.TenantRepository
	api     ports.CommerceAPI
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTenantSyncOrchestrator creates a new tenant sync orchestrator
func NewTenantSyncOrchestrator(
	task *EntitySyncTask,
	tenants ports.TenantRepository,
	api ports.CommerceAPI,
	metrics *Metrics,
	logger zerolog.Logger,
) *TenantSyncOrchestrator {
	return &TenantSyncOrchestrator{
		task:    task,
		tenants: tenants,
		api:     api,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SyncTenant performs a full run across all entity stages for one tenant.
func (o *TenantSyncOrchestrator) SyncTenant(ctx context.Context, tenant *domain.Tenant) *domain.TenantSyncReport {
	report := o.newReport(tenant, domain.SyncModeFull)
	logger := o.runLogger(report)
	logger.Info().Msg("Starting tenant sync")

	conn := ports.Connection{
		TenantID:    tenant.ID,
		ShopDomain:  tenant.ShopDomain,
		AccessToken: tenant.AccessToken,
	}
	if err := o.api.VerifyCredentials(ctx, conn); err != nil {
		// Auth failure before any stage. Terminal for the run, non-fatal for
		// the fleet; the tenant stays stale until the next attempt.
		logger.Error().Err(err).Msg("Credential check failed, aborting tenant sync")
		for _, entity := range domain.SyncEntityOrder {
			report.Entities = append(report.Entities, domain.EntitySyncReport{Entity: entity, Err: err})
			o.metrics.StageFailures.WithLabelValues(tenant.ID, entity.String()).Inc()
		}
		return o.finish(ctx, tenant, report, logger)
	}

	for _, entity := range domain.SyncEntityOrder {
		stage, err := o.task.Run(ctx, tenant, entity, time.Time{})
		stage.Err = err
		report.Entities = append(report.Entities, *stage)
		if err != nil {
			o.metrics.StageFailures.WithLabelValues(tenant.ID, entity.String()).Inc()
			logger.Error().Err(err).
				Str("entity", entity.String()).
				Int("synced_before_failure", stage.Synced).
				Msg("Entity stage failed, continuing with next stage")
		}
	}

	return o.finish(ctx, tenant, report, logger)
}

// SyncTenantOrders performs the narrow incremental run: orders only, bounded
// by the created-at lower bound. It never touches the full-sync watermark.
func (o *TenantSyncOrchestrator) SyncTenantOrders(ctx context.Context, tenant *domain.Tenant, since time.Time) *domain.TenantSyncReport {
	report := o.newReport(tenant, domain.SyncModeIncremental)
	logger := o.runLogger(report)
	logger.Info().Time("since", since).Msg("Starting incremental order sync")

	stage, err := o.task.Run(ctx, tenant, domain.EntityOrders, since)
	stage.Err = err
	report.Entities = append(report.Entities, *stage)
	if err != nil {
		o.metrics.StageFailures.WithLabelValues(tenant.ID, domain.EntityOrders.String()).Inc()
		logger.Error().Err(err).Msg("Incremental order sync failed")
	}

	report.FinishedAt = o.now()
	if report.Completed() {
		report.Stage = domain.StageComplete
	} else {
		report.Stage = domain.StageAborted
	}
	logger.Info().
		Str("stage", string(report.Stage)).
		Int("synced", report.TotalSynced()).
		Msg("Incremental order sync finished")
	return report
}

func (o *TenantSyncOrchestrator) newReport(tenant *domain.Tenant, mode domain.SyncMode) *domain.TenantSyncReport {
	return &domain.TenantSyncReport{
		RunID:      uuid.NewString(),
		TenantID:   tenant.ID,
		ShopDomain: tenant.ShopDomain,
		Mode:       mode,
		StartedAt:  o.now(),
	}
}

func (o *TenantSyncOrchestrator) runLogger(report *domain.TenantSyncReport) zerolog.Logger {
	return o.logger.With().
		Str("run_id", report.RunID).
		Str("tenant_id", report.TenantID).
		Str("shop", report.ShopDomain).
		Str("mode", string(report.Mode)).
		Logger()
}

func (o *TenantSyncOrchestrator) finish(ctx context.Context, tenant *domain.Tenant, report *domain.TenantSyncReport, logger zerolog.Logger) *domain.TenantSyncReport {
	report.FinishedAt = o.now()

	// A cancelled run must look like a failed one: watermark untouched, safe
	// to retry.
	if report.Completed() && ctx.Err() == nil {
		report.Stage = domain.StageComplete
		if err := o.tenants.SetLastSyncedAt(ctx, tenant.ID, report.FinishedAt); err != nil {
			logger.Error().Err(err).Msg("Failed to advance tenant watermark")
		}
	} else {
		report.Stage = domain.StageAborted
	}

	logger.Info().
		Str("stage", string(report.Stage)).
		Int("synced", report.TotalSynced()).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Tenant sync finished")
	return report
}
