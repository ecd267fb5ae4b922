package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"xenoxify-sync-engine/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(api *fakeCommerceAPI, store *fakeEntityRepository, tenants *fakeTenantRepository) *TenantSyncOrchestrator {
	task := newTestTask(api, store, nil)
	return NewTenantSyncOrchestrator(task, tenants, api, newTestMetrics(), zerolog.Nop())
}

func TestSyncTenantCompleteAdvancesWatermark(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.pages[domain.EntityProducts] = [][]json.RawMessage{rawRecords(1, 2)}
	api.pages[domain.EntityCustomers] = [][]json.RawMessage{rawRecords(10)}
	api.pages[domain.EntityOrders] = [][]json.RawMessage{rawRecords(100, 101, 102)}
	store := newFakeEntityRepository()
	o := newTestOrchestrator(api, store, tenants)

	report := o.SyncTenant(context.Background(), tenant)

	assert.Equal(t, domain.StageComplete, report.Stage)
	assert.Equal(t, domain.SyncModeFull, report.Mode)
	assert.Equal(t, 6, report.TotalSynced())
	require.Len(t, report.Entities, 3)
	assert.Equal(t, domain.EntityProducts, report.Entities[0].Entity)
	assert.Equal(t, domain.EntityCustomers, report.Entities[1].Entity)
	assert.Equal(t, domain.EntityOrders, report.Entities[2].Entity)
	assert.NotEmpty(t, report.RunID)

	_, ok := tenants.lastSynced("t1")
	assert.True(t, ok)
}

func TestSyncTenantStageFailureIsIsolated(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.pages[domain.EntityProducts] = [][]json.RawMessage{rawRecords(1)}
	api.pages[domain.EntityCustomers] = [][]json.RawMessage{rawRecords(10)}
	api.failPage[domain.EntityCustomers] = 0
	api.pages[domain.EntityOrders] = [][]json.RawMessage{rawRecords(100)}
	store := newFakeEntityRepository()
	o := newTestOrchestrator(api, store, tenants)

	report := o.SyncTenant(context.Background(), tenant)

	assert.Equal(t, domain.StageAborted, report.Stage)
	require.Len(t, report.Entities, 3)
	assert.NoError(t, report.Entities[0].Err)
	assert.Error(t, report.Entities[1].Err)
	assert.NoError(t, report.Entities[2].Err)

	// Orders still ran despite the customers failure.
	assert.Equal(t, 1, report.Entities[2].Synced)

	_, ok := tenants.lastSynced("t1")
	assert.False(t, ok)
}

func TestSyncTenantPartialPageFailureReportsPartialCount(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.pages[domain.EntityOrders] = [][]json.RawMessage{
		rawRecords(1, 2, 3),
		rawRecords(4, 5),
	}
	api.failPage[domain.EntityOrders] = 1
	store := newFakeEntityRepository()
	o := newTestOrchestrator(api, store, tenants)

	report := o.SyncTenant(context.Background(), tenant)

	assert.Equal(t, domain.StageAborted, report.Stage)
	orders := report.Entities[2]
	assert.Error(t, orders.Err)
	assert.Equal(t, 3, orders.Synced)
}

func TestSyncTenantCredentialFailureSkipsAllStages(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.verifyErr = errors.New("401 invalid token")
	api.pages[domain.EntityProducts] = [][]json.RawMessage{rawRecords(1)}
	store := newFakeEntityRepository()
	o := newTestOrchestrator(api, store, tenants)

	report := o.SyncTenant(context.Background(), tenant)

	assert.Equal(t, domain.StageAborted, report.Stage)
	require.Len(t, report.Entities, 3)
	for _, stage := range report.Entities {
		assert.Error(t, stage.Err)
		assert.Zero(t, stage.Synced)
	}
	assert.Empty(t, api.calls)

	_, ok := tenants.lastSynced("t1")
	assert.False(t, ok)
}

func TestSyncTenantCancelledRunDoesNotAdvanceWatermark(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.pages[domain.EntityOrders] = [][]json.RawMessage{
		rawRecords(1),
		rawRecords(2),
	}
	ctx, cancel := context.WithCancel(context.Background())
	api.onFetch = func(call fetchCall) {
		if call.entity == domain.EntityOrders && call.cursor == "" {
			cancel()
		}
	}
	store := newFakeEntityRepository()
	o := newTestOrchestrator(api, store, tenants)

	report := o.SyncTenant(ctx, tenant)

	assert.Equal(t, domain.StageAborted, report.Stage)
	_, ok := tenants.lastSynced("t1")
	assert.False(t, ok)
}

func TestFullSyncAfterFailedIncrementalStartsFromFirstPage(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.pages[domain.EntityOrders] = [][]json.RawMessage{
		rawRecords(1, 2),
		rawRecords(3),
	}
	api.failPage[domain.EntityOrders] = 1
	store := newFakeEntityRepository()
	cursors := newFakeCursorStore()
	task := NewEntitySyncTask(api, newTestWriter(store), cursors, 250, newTestMetrics(), zerolog.Nop())
	o := NewTenantSyncOrchestrator(task, tenants, api, newTestMetrics(), zerolog.Nop())

	inc := o.SyncTenantOrders(context.Background(), tenant, time.Now().Add(-time.Hour))
	assert.Equal(t, domain.StageAborted, inc.Stage)
	assert.Empty(t, cursors.get("t1", domain.EntityOrders))

	// The next full run must rescan orders from the very first page instead
	// of picking up where the bounded run stopped.
	api.failPage[domain.EntityOrders] = -1
	full := o.SyncTenant(context.Background(), tenant)

	assert.Equal(t, domain.StageComplete, full.Stage)
	_, ok := store.order("t1", 1)
	assert.True(t, ok)
	_, ok = store.order("t1", 3)
	assert.True(t, ok)

	calls := api.callsFor(domain.EntityOrders)
	require.Len(t, calls, 4)
	assert.Equal(t, "", calls[2].cursor)
	assert.Equal(t, "p1", calls[3].cursor)

	_, ok = tenants.lastSynced("t1")
	assert.True(t, ok)
}

func TestSyncTenantOrdersPassesSinceAndKeepsWatermark(t *testing.T) {
	tenant := activeTenant("t1", "t1.myshopify.com")
	tenants := newFakeTenantRepository(tenant)
	api := newFakeCommerceAPI()
	api.pages[domain.EntityOrders] = [][]json.RawMessage{rawRecords(1, 2)}
	store := newFakeEntityRepository()
	o := newTestOrchestrator(api, store, tenants)

	since := time.Now().Add(-time.Hour)
	report := o.SyncTenantOrders(context.Background(), tenant, since)

	assert.Equal(t, domain.StageComplete, report.Stage)
	assert.Equal(t, domain.SyncModeIncremental, report.Mode)
	assert.Equal(t, 2, report.TotalSynced())
	require.Len(t, report.Entities, 1)
	assert.Equal(t, domain.EntityOrders, report.Entities[0].Entity)

	calls := api.callsFor(domain.EntityOrders)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].since.Equal(since))

	// Incremental runs leave the full-sync watermark alone.
	_, ok := tenants.lastSynced("t1")
	assert.False(t, ok)

	// Only orders were touched.
	assert.Empty(t, api.callsFor(domain.EntityProducts))
	assert.Empty(t, api.callsFor(domain.EntityCustomers))
}
