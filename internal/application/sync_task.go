package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// EntitySyncTask drains one upstream collection for one tenant, page by
// page, applying every record through the UpsertWriter. Pages are consumed
// strictly in upstream order; record-level failures are collected, not
// raised. Only a failure of the fetch sequence itself is terminal.
type EntitySyncTask struct {
	api      ports.CommerceAPI
	writer   *UpsertWriter
	cursors  ports.CursorStore // optional; nil disables checkpointing
	pageSize int
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewEntitySyncTask creates a new entity sync task
func NewEntitySyncTask(
	api ports.CommerceAPI,
	writer *UpsertWriter,
	cursors ports.CursorStore,
	pageSize int,
	metrics *Metrics,
	logger zerolog.Logger,
) *EntitySyncTask {
	return &EntitySyncTask{
		api:      api,
		writer:   writer,
		cursors:  cursors,
		pageSize: pageSize,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run syncs one (tenant, entity) pair. The returned report always carries
// the counts accumulated before any terminal error. A non-zero since bounds
// the fetch to records created after that time; bounded runs never read or
// write resume cursors.
func (t *EntitySyncTask) Run(ctx context.Context, tenant *domain.Tenant, entity domain.EntityType, since time.Time) (*domain.EntitySyncReport, error) {
	conn := ports.Connection{
		TenantID:    tenant.ID,
		ShopDomain:  tenant.ShopDomain,
		AccessToken: tenant.AccessToken,
	}
	report := &domain.EntitySyncReport{Entity: entity}
	logger := t.logger.With().
		Str("tenant_id", tenant.ID).
		Str("shop", tenant.ShopDomain).
		Str("entity", entity.String()).
		Logger()

	// Only unbounded runs checkpoint. The upstream page token bakes the
	// created-at bound into the cursor, so a cursor saved by a bounded run
	// would silently carry its bound into any run that resumed from it.
	checkpoint := since.IsZero()

	var cursor string
	if checkpoint {
		cursor = t.loadCursor(ctx, tenant.ID, entity, logger)
	}
	opts := ports.FetchOptions{PageSize: t.pageSize, CreatedAtMin: since}

	for {
		page, err := t.api.FetchPage(ctx, conn, entity, cursor, opts)
		if err != nil {
			// Terminal for this stage. Any saved checkpoint stays put so a
			// future unbounded run can resume at the failed page.
			return report, fmt.Errorf("sync %s for %s: %w", entity, tenant.ShopDomain, err)
		}

		for _, raw := range page.Records {
			if err := t.writer.Write(ctx, tenant.ID, entity, raw); err != nil {
				report.Failures = append(report.Failures, domain.RecordFailure{
					Entity:     entity,
					ExternalID: externalIDHint(raw),
					Reason:     err.Error(),
				})
				t.metrics.RecordFailures.WithLabelValues(tenant.ID, entity.String()).Inc()
				logger.Warn().Err(err).Msg("Skipping record")
				continue
			}
			report.Synced++
			t.metrics.RecordsSynced.WithLabelValues(tenant.ID, entity.String()).Inc()
		}

		if page.NextCursor == "" {
			if checkpoint {
				t.clearCursor(ctx, tenant.ID, entity, logger)
			}
			break
		}
		cursor = page.NextCursor
		if checkpoint {
			t.saveCursor(ctx, tenant.ID, entity, cursor, logger)
		}

		// Page boundaries are the cooperative cancellation checkpoint.
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	logger.Info().
		Int("synced", report.Synced).
		Int("failures", len(report.Failures)).
		Msg("Entity sync complete")
	return report, nil
}

// externalIDHint pulls the record id out of a raw payload for failure
// reports, tolerating records too malformed to map.
func externalIDHint(raw json.RawMessage) string {
	var probe struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID.String()
}

func (t *EntitySyncTask) loadCursor(ctx context.Context, tenantID string, entity domain.EntityType, logger zerolog.Logger) string {
	if t.cursors == nil {
		return ""
	}
	cursor, err := t.cursors.Load(ctx, tenantID, entity)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load resume cursor, starting over")
		return ""
	}
	if cursor != "" {
		logger.Info().Msg("Resuming from saved cursor")
	}
	return cursor
}

// Checkpointing is best effort: a lost cursor means duplicate work on the
// next run, never incorrect state.
func (t *EntitySyncTask) saveCursor(ctx context.Context, tenantID string, entity domain.EntityType, cursor string, logger zerolog.Logger) {
	if t.cursors == nil {
		return
	}
	if err := t.cursors.Save(ctx, tenantID, entity, cursor); err != nil {
		logger.Warn().Err(err).Msg("Failed to save resume cursor")
	}
}

func (t *EntitySyncTask) clearCursor(ctx context.Context, tenantID string, entity domain.EntityType, logger zerolog.Logger) {
	if t.cursors == nil {
		return
	}
	if err := t.cursors.Clear(ctx, tenantID, entity); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear resume cursor")
	}
}
