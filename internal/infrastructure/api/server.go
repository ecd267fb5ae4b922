package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"xenoxify-sync-engine/internal/application"
	"xenoxify-sync-engine/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the engine's admin and insights surface: health, metrics,
// tenant listing with watermarks, manual sync triggers, and pre-aggregated
// dashboard figures. The dashboard UI itself lives elsewhere.
type Server struct {
	scheduler *application.SyncScheduler
	insights  *application.InsightsService
	tenants   ports.TenantRepository
	registry  *prometheus.Registry
	logger    zerolog.Logger

	// baseCtx detaches manual sync runs from the request lifetime.
	baseCtx context.Context
}

// NewServer creates a new admin API server
func NewServer(
	baseCtx context.Context,
	scheduler *application.SyncScheduler,
	insights *application.InsightsService,
	tenants ports.TenantRepository,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) *Server {
	return &Server{
		scheduler: scheduler,
		insights:  insights,
		tenants:   tenants,
		registry:  registry,
		logger:    logger,
		baseCtx:   baseCtx,
	}
}

// Router builds the chi router for the admin surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/tenants", s.handleListTenants)
	r.Post("/tenants/{tenantID}/sync", s.handleTriggerSync)
	r.Get("/tenants/{tenantID}/insights/summary", s.handleSummary)
	r.Get("/tenants/{tenantID}/insights/top-customers", s.handleTopCustomers)

	return r
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.tenants.ListActive(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list tenants")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tenants"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"total":   len(tenants),
	})
}

// handleTriggerSync starts a full sync for one tenant in the background. It
// does not queue: if a run for that tenant is already active, the trigger is
// dropped and logged.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	tenant, err := s.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Failed to load tenant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load tenant"})
		return
	}
	if tenant == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	}

	go func() {
		if _, err := s.scheduler.SyncTenantByID(s.baseCtx, tenantID); err != nil {
			if errors.Is(err, application.ErrRunInProgress) {
				s.logger.Info().Str("tenant_id", tenantID).Msg("Manual sync skipped, run already in progress")
				return
			}
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Manual sync failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"tenant_id": tenantID,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	period, _ := strconv.Atoi(r.URL.Query().Get("period"))

	summary, err := s.insights.Summary(r.Context(), tenantID, period)
	if err != nil {
		s.writeInsightsError(w, tenantID, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTopCustomers(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	customers, err := s.insights.TopCustomers(r.Context(), tenantID, limit)
	if err != nil {
		s.writeInsightsError(w, tenantID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customers": customers,
		"total":     len(customers),
	})
}

func (s *Server) writeInsightsError(w http.ResponseWriter, tenantID string, err error) {
	if errors.Is(err, application.ErrTenantNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		return
	}
	s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Failed to compute insights")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute insights"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
