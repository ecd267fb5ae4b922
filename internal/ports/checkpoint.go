package ports

import (
	"context"

	"xenoxify-sync-engine/internal/domain"
)

// CursorStore persists resume cursors per (tenant, entity) so an interrupted
// run can pick up where it left off. Checkpointing is best effort: losing a
// cursor costs duplicate work, never correctness, because downstream upserts
// are idempotent.
type CursorStore interface {
	// Load returns the saved cursor, or "" when none exists.
	Load(ctx context.Context, tenantID string, entity domain.EntityType) (string, error)
	Save(ctx context.Context, tenantID string, entity domain.EntityType, cursor string) error
	Clear(ctx context.Context, tenantID string, entity domain.EntityType) error
}
