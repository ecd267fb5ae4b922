package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ---- fake entity repository ----

type entityKey struct {
	tenantID   string
	externalID int64
}

// fakeEntityRepository mirrors the store contract: create-or-update by
// (external id, tenant id) with created_at set only on first insert.
type fakeEntityRepository struct {
	mu        sync.Mutex
	products  map[entityKey]domain.Product
	customers map[entityKey]domain.Customer
	orders    map[entityKey]domain.Order
	failWith  error
}

func newFakeEntityRepository() *fakeEntityRepository {
	return &fakeEntityRepository{
		products:  make(map[entityKey]domain.Product),
		customers: make(map[entityKey]domain.Customer),
		orders:    make(map[entityKey]domain.Order),
	}
}

func (f *fakeEntityRepository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	key := entityKey{p.TenantID, p.ExternalID}
	stored := *p
	if prev, ok := f.products[key]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	f.products[key] = stored
	return nil
}

func (f *fakeEntityRepository) UpsertCustomer(ctx context.Context, c *domain.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	key := entityKey{c.TenantID, c.ExternalID}
	stored := *c
	if prev, ok := f.customers[key]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	f.customers[key] = stored
	return nil
}

func (f *fakeEntityRepository) UpsertOrder(ctx context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	key := entityKey{o.TenantID, o.ExternalID}
	stored := *o
	if prev, ok := f.orders[key]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	f.orders[key] = stored
	return nil
}

func (f *fakeEntityRepository) product(tenantID string, id int64) (domain.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[entityKey{tenantID, id}]
	return p, ok
}

func (f *fakeEntityRepository) customer(tenantID string, id int64) (domain.Customer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[entityKey{tenantID, id}]
	return c, ok
}

func (f *fakeEntityRepository) order(tenantID string, id int64) (domain.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[entityKey{tenantID, id}]
	return o, ok
}

func (f *fakeEntityRepository) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.products), len(f.customers), len(f.orders)
}

// ---- fake commerce API ----

type fetchCall struct {
	tenantID string
	entity   domain.EntityType
	cursor   string
	since    time.Time
}

// fakeCommerceAPI serves scripted page sequences per entity type. Cursors
// are "p<index>" tokens; "" addresses the first page.
type fakeCommerceAPI struct {
	mu        sync.Mutex
	pages     map[domain.EntityType][][]json.RawMessage
	failPage  map[domain.EntityType]int // page index that fails; -1 disables
	verifyErr error
	calls     []fetchCall
	onFetch   func(call fetchCall)
}

func newFakeCommerceAPI() *fakeCommerceAPI {
	return &fakeCommerceAPI{
		pages: make(map[domain.EntityType][][]json.RawMessage),
		failPage: map[domain.EntityType]int{
			domain.EntityProducts:  -1,
			domain.EntityCustomers: -1,
			domain.EntityOrders:    -1,
		},
	}
}

func (f *fakeCommerceAPI) FetchPage(ctx context.Context, conn ports.Connection, entity domain.EntityType, cursor string, opts ports.FetchOptions) (*ports.Page, error) {
	call := fetchCall{tenantID: conn.TenantID, entity: entity, cursor: cursor, since: opts.CreatedAtMin}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	pages := f.pages[entity]
	fail := f.failPage[entity]
	hook := f.onFetch
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		hook(call)
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "p"))
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
		idx = n
	}
	if fail >= 0 && idx == fail {
		return nil, fmt.Errorf("upstream unavailable")
	}
	if idx >= len(pages) {
		return &ports.Page{}, nil
	}
	page := &ports.Page{Records: pages[idx]}
	if idx+1 < len(pages) {
		page.NextCursor = fmt.Sprintf("p%d", idx+1)
	}
	return page, nil
}

func (f *fakeCommerceAPI) VerifyCredentials(ctx context.Context, conn ports.Connection) error {
	return f.verifyErr
}

func (f *fakeCommerceAPI) callsFor(entity domain.EntityType) []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fetchCall
	for _, c := range f.calls {
		if c.entity == entity {
			out = append(out, c)
		}
	}
	return out
}

// ---- fake tenant repository ----

type fakeTenantRepository struct {
	mu      sync.Mutex
	tenants []*domain.Tenant
	synced  map[string]time.Time
}

func newFakeTenantRepository(tenants ...*domain.Tenant) *fakeTenantRepository {
	return &fakeTenantRepository{
		tenants: tenants,
		synced:  make(map[string]time.Time),
	}
}

func (f *fakeTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTenantRepository) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Tenant
	for _, t := range f.tenants {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTenantRepository) ListActiveUpdatedSince(ctx context.Context, since time.Time) ([]*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Tenant
	for _, t := range f.tenants {
		if t.IsActive() && !t.UpdatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTenantRepository) SetLastSyncedAt(ctx context.Context, id string, syncedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[id] = syncedAt
	return nil
}

func (f *fakeTenantRepository) lastSynced(id string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.synced[id]
	return ts, ok
}

// ---- fake cursor store ----

type fakeCursorStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{cursors: make(map[string]string)}
}

func (f *fakeCursorStore) key(tenantID string, entity domain.EntityType) string {
	return tenantID + "/" + entity.String()
}

func (f *fakeCursorStore) Load(ctx context.Context, tenantID string, entity domain.EntityType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[f.key(tenantID, entity)], nil
}

func (f *fakeCursorStore) Save(ctx context.Context, tenantID string, entity domain.EntityType, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[f.key(tenantID, entity)] = cursor
	return nil
}

func (f *fakeCursorStore) Clear(ctx context.Context, tenantID string, entity domain.EntityType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cursors, f.key(tenantID, entity))
	return nil
}

func (f *fakeCursorStore) get(tenantID string, entity domain.EntityType) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[f.key(tenantID, entity)]
}

// ---- fixtures ----

func activeTenant(id, shop string) *domain.Tenant {
	return &domain.Tenant{
		ID:          id,
		Name:        shop,
		ShopDomain:  shop,
		AccessToken: "shpat_" + id,
		Status:      domain.TenantStatusActive,
		CreatedAt:   time.Now().Add(-24 * time.Hour),
		UpdatedAt:   time.Now(),
	}
}

func rawRecord(id int64, extra string) json.RawMessage {
	body := fmt.Sprintf(`{"id":%d`, id)
	if extra != "" {
		body += "," + extra
	}
	return json.RawMessage(body + "}")
}

func rawRecords(ids ...int64) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, rawRecord(id, ""))
	}
	return out
}
