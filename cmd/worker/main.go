package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xenoxify-sync-engine/internal/application"
	"xenoxify-sync-engine/internal/config"
	apiinfra "xenoxify-sync-engine/internal/infrastructure/api"
	"xenoxify-sync-engine/internal/infrastructure/checkpoint"
	"xenoxify-sync-engine/internal/infrastructure/repository"
	shopifyinfra "xenoxify-sync-engine/internal/infrastructure/shopify"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"xenoxify-sync-engine/internal/ports"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)

	// Initialize repositories
	tenantRepo := repository.NewMongoTenantRepository(db)
	syncRepo := repository.NewMongoSyncRepository(db)
	if err := syncRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure entity indexes")
	}

	// Resume-cursor checkpointing is optional; without Redis every run
	// starts at the first page, which costs duplicate work, not correctness.
	var cursors ports.CursorStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("⚠️  Redis unreachable, resume-cursor checkpointing disabled")
			rdb.Close()
		} else {
			defer rdb.Close()
			cursors = checkpoint.NewRedisCursorStore(rdb, cfg.CursorTTL)
		}
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, resume-cursor checkpointing disabled")
	}

	// Initialize the upstream client with per-tenant pacing
	pacer := shopifyinfra.NewPacer(cfg.CallSpacing, logger)
	commerceAPI := shopifyinfra.NewClient(cfg.ShopifyAPIVersion, pacer, logger)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	metrics := application.NewMetrics(registry)

	// Initialize the sync engine
	writer := application.NewUpsertWriter(syncRepo, logger)
	task := application.NewEntitySyncTask(commerceAPI, writer, cursors, cfg.PageSize, metrics, logger)
	orchestrator := application.NewTenantSyncOrchestrator(task, tenantRepo, commerceAPI, metrics, logger)
	scheduler := application.NewSyncScheduler(orchestrator, tenantRepo, cfg.SyncWorkers, cfg.IncrementalWindow, metrics, logger)

	insights := application.NewInsightsService(syncRepo, tenantRepo, logger)

	// Schedule the two triggers
	c := cron.New()
	if _, err := c.AddFunc(cfg.FullSyncSchedule, func() {
		if err := scheduler.RunFull(ctx); err != nil {
			logger.Warn().Err(err).Msg("Scheduled full sync did not run")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.FullSyncSchedule).Msg("Invalid full sync schedule")
	}
	if _, err := c.AddFunc(cfg.IncrementalSyncSchedule, func() {
		if err := scheduler.RunIncremental(ctx); err != nil {
			logger.Warn().Err(err).Msg("Scheduled incremental sync did not run")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.IncrementalSyncSchedule).Msg("Invalid incremental sync schedule")
	}
	c.Start()
	logger.Info().
		Str("full", cfg.FullSyncSchedule).
		Str("incremental", cfg.IncrementalSyncSchedule).
		Msg("Sync schedules registered")

	// Initial full pass so a fresh deployment has data before the first
	// scheduled run.
	if cfg.SyncOnStart {
		go func() {
			if err := scheduler.RunFull(ctx); err != nil {
				logger.Warn().Err(err).Msg("Initial full sync did not run")
			}
		}()
	}

	// Admin/insights HTTP surface
	server := apiinfra.NewServer(ctx, scheduler, insights, tenantRepo, registry, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting admin API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start admin API server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down worker")

	cronCtx := c.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down admin API server")
	}
	// Let in-flight cron jobs reach their next page boundary.
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
	}
	logger.Info().Msg("Worker stopped")
}
