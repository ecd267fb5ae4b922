package ports

import (
	"context"
	"encoding/json"
	"time"

	"xenoxify-sync-engine/internal/domain"
)

// Connection is one tenant's binding to the upstream commerce API. It is
// passed explicitly into every call; no component holds process-wide
// credential state.
type Connection struct {
	TenantID    string
	ShopDomain  string
	AccessToken string
}

// FetchOptions bound a page fetch. CreatedAtMin is only honored for entity
// types whose upstream endpoint supports a creation-time lower bound
// (orders); a zero value means unbounded.
type FetchOptions struct {
	PageSize     int
	CreatedAtMin time.Time
}

// Page is one batch of raw upstream records. NextCursor is opaque: it is
// sufficient to resume exactly after this page, and an empty value signals
// the final page. Callers must consume pages strictly in order.
type Page struct {
	Records    []json.RawMessage
	NextCursor string
}

// CommerceAPI is the engine's view of the upstream platform. The concrete
// pagination mechanism (header links, body cursors, offset/limit) stays
// behind the opaque cursor so it can be swapped without touching the
// orchestration layers.
type CommerceAPI interface {
	// FetchPage retrieves one page of the collection, pacing itself against
	// the tenant's rate budget before issuing the request. Any failure
	// (network, non-2xx, malformed body) is terminal for the sequence.
	FetchPage(ctx context.Context, conn Connection, entity domain.EntityType, cursor string, opts FetchOptions) (*Page, error)

	// VerifyCredentials makes a lightweight call to check that the
	// connection's token is still valid.
	VerifyCredentials(ctx context.Context, conn Connection) error
}
