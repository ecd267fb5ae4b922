package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// ErrRunInProgress signals that an equivalent run is already active and the
// trigger was deliberately skipped, not queued.
var ErrRunInProgress = errors.New("sync run already in progress")

// ErrTenantNotFound signals a manual trigger for an unknown tenant.
var ErrTenantNotFound = errors.New("tenant not found")

// DefaultSyncWorkers bounds how many tenants sync concurrently during a full
// run, keeping the aggregate request rate under the upstream budget.
const DefaultSyncWorkers = 3

// DefaultIncrementalWindow is the lookback of the hourly incremental sync.
const DefaultIncrementalWindow = time.Hour

// SyncScheduler fans tenant runs out of the two scheduled triggers. Overlap
// is guarded per tenant: a run token is held for the duration of any run for
// that tenant, so a full and an incremental run can never race on the same
// rows, while runs for different tenants proceed concurrently.
type SyncScheduler struct {
	orchestrator *TenantSyncOrchestrator
	tenants      ports.TenantRepository
	metrics      *Metrics
	logger       zerolog.Logger

	workers           int
	incrementalWindow time.Duration

	mu          sync.Mutex
	running     map[string]struct{}
	fullRunning bool
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(
	orchestrator *TenantSyncOrchestrator,
	tenants ports.TenantRepository,
	workers int,
	incrementalWindow time.Duration,
	metrics *Metrics,
	logger zerolog.Logger,
) *SyncScheduler {
	if workers <= 0 {
		workers = DefaultSyncWorkers
	}
	if incrementalWindow <= 0 {
		incrementalWindow = DefaultIncrementalWindow
	}
	return &SyncScheduler{
		orchestrator:      orchestrator,
		tenants:           tenants,
		workers:           workers,
		incrementalWindow: incrementalWindow,
		metrics:           metrics,
		logger:            logger,
		running:           make(map[string]struct{}),
	}
}

// RunFull syncs every active tenant with a bounded worker pool. An
// overlapping full-sync trigger is skipped whole and logged, never queued.
func (s *SyncScheduler) RunFull(ctx context.Context) error {
	s.mu.Lock()
	if s.fullRunning {
		s.mu.Unlock()
		s.logger.Info().Msg("Full sync already running, skipping trigger")
		s.metrics.RunsSkipped.WithLabelValues(string(domain.SyncModeFull)).Inc()
		return ErrRunInProgress
	}
	s.fullRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fullRunning = false
		s.mu.Unlock()
	}()

	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().Int("tenants", len(tenants)).Msg("Starting full sync")

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(tenant *domain.Tenant) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runFullForTenant(ctx, tenant)
		}(tenant)
	}
	wg.Wait()

	s.logger.Info().Msg("Full sync pass finished")
	return nil
}

func (s *SyncScheduler) runFullForTenant(ctx context.Context, tenant *domain.Tenant) {
	if !s.acquire(tenant.ID) {
		// Most likely an incremental run still holds the token. Skip, do not
		// queue; the next scheduled pass will cover this tenant.
		s.logger.Info().
			Str("tenant_id", tenant.ID).
			Str("shop", tenant.ShopDomain).
			Msg("Tenant run already in progress, skipping full sync for tenant")
		s.metrics.RunsSkipped.WithLabelValues(string(domain.SyncModeFull)).Inc()
		return
	}
	defer s.release(tenant.ID)

	s.observeRun(domain.SyncModeFull, func() {
		s.orchestrator.SyncTenant(ctx, tenant)
	})
}

// RunIncremental syncs recently created orders for tenants touched within the
// incremental window. Tenants with a full run in flight are skipped.
func (s *SyncScheduler) RunIncremental(ctx context.Context) error {
	since := time.Now().Add(-s.incrementalWindow)
	tenants, err := s.tenants.ListActiveUpdatedSince(ctx, since)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		s.logger.Debug().Msg("No recently updated tenants, incremental sync is a no-op")
		return nil
	}
	s.logger.Info().Int("tenants", len(tenants)).Time("since", since).Msg("Starting incremental sync")

	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.acquire(tenant.ID) {
			s.logger.Debug().
				Str("tenant_id", tenant.ID).
				Str("shop", tenant.ShopDomain).
				Msg("Tenant run already in progress, skipping incremental sync for tenant")
			s.metrics.RunsSkipped.WithLabelValues(string(domain.SyncModeIncremental)).Inc()
			continue
		}
		s.observeRun(domain.SyncModeIncremental, func() {
			s.orchestrator.SyncTenantOrders(ctx, tenant, since)
		})
		s.release(tenant.ID)
	}
	return nil
}

// SyncTenantByID runs a full sync for a single tenant, used by the manual
// trigger endpoint. It honors the same per-tenant run token as the scheduled
// passes.
func (s *SyncScheduler) SyncTenantByID(ctx context.Context, tenantID string) (*domain.TenantSyncReport, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	if !s.acquire(tenant.ID) {
		s.metrics.RunsSkipped.WithLabelValues(string(domain.SyncModeFull)).Inc()
		return nil, ErrRunInProgress
	}
	defer s.release(tenant.ID)

	var report *domain.TenantSyncReport
	s.observeRun(domain.SyncModeFull, func() {
		report = s.orchestrator.SyncTenant(ctx, tenant)
	})
	return report, nil
}

// acquire takes the tenant's run token. It returns false when any run for
// that tenant is already active.
func (s *SyncScheduler) acquire(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, active := s.running[tenantID]; active {
		return false
	}
	s.running[tenantID] = struct{}{}
	return true
}

func (s *SyncScheduler) release(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, tenantID)
}

func (s *SyncScheduler) observeRun(mode domain.SyncMode, run func()) {
	s.metrics.RunsStarted.WithLabelValues(string(mode)).Inc()
	s.metrics.ActiveRuns.Inc()
	start := time.Now()
	defer func() {
		s.metrics.ActiveRuns.Dec()
		s.metrics.RunDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()
	run()
}
