package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"crop-estimator/internal/config"
	"crop-estimator/internal/handlers"
	"crop-estimator/internal/repository"
	"crop-estimator/internal/services"
	"crop-estimator/pkg/database"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("crop-api", version, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[STARTUP] Starting crop estimator API server", logging.Fields{
		"version":          version,
		"server_host":      cfg.Server.Host,
		"server_port":      cfg.Server.Port,
		"database_enabled": cfg.Database.Enabled,
		"catalog_path":     cfg.Catalog.Path,
	})

	metricsCollector := metrics.NewCollector("crop_estimator", nil)

	// Persistence is optional; without it the catalog comes from a file or the
	// embedded default and estimate history is disabled.
	var (
		catalogRepo  repository.CatalogRepository
		climateRepo  repository.ClimateRepository
		estimateRepo repository.EstimateRepository
		health       handlers.HealthChecker
		climateSvc   *services.ClimateService
	)
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Database.PostgresConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		repo := repository.NewPostgresRepository(db, logger, metricsCollector)
		catalogRepo, climateRepo, estimateRepo, health = repo, repo, repo, repo
		climateSvc = services.NewClimateService(repo, logger, metricsCollector)
	}

	crops, source, err := services.LoadCatalog(ctx, catalogRepo, cfg.Catalog.Path)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load crop catalog", logging.Fields{
			"path": cfg.Catalog.Path,
		}, err)
	}
	logger.Info(ctx, "[CATALOG_LOADED] Crop catalog loaded", logging.Fields{
		"source": source,
		"crops":  crops.Len(),
	})

	catalogSvc, err := services.NewCatalogService(crops, cfg.Estimator.Weights(), catalogRepo, cfg.Catalog.Path, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to build estimator", logging.Fields{}, err)
	}
	estimationSvc := services.NewEstimationService(catalogSvc, climateRepo, estimateRepo, logger, metricsCollector)

	if cfg.Catalog.ReloadInterval > 0 {
		go reloadCatalog(ctx, catalogSvc, cfg.Catalog.ReloadInterval)
	}

	cropHandler := handlers.NewCropHandler(catalogSvc, estimationSvc, climateSvc, health, cfg.Estimator.RecommendLimit, logger, metricsCollector)

	routerOpts := handlers.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MetricsHandler: promhttp.Handler(),
	}
	if cfg.RateLimit.Enabled {
		routerOpts.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.NewRouter(cropHandler, routerOpts, logger, metricsCollector),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	<-ctx.Done()

	logger.Info(context.Background(), "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(shutdownCtx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// reloadCatalog refreshes the catalog until ctx is cancelled. Failures keep the
// current catalog and are logged by the service.
func reloadCatalog(ctx context.Context, catalogSvc *services.CatalogService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			catalogSvc.Reload(ctx)
		}
	}
}
