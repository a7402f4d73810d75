package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"pos-inventory-service/internal/api"
	"pos-inventory-service/internal/catalog"
	"pos-inventory-service/internal/config"
	"pos-inventory-service/internal/legacy"
	"pos-inventory-service/internal/logging"
	"pos-inventory-service/internal/migration"
	"pos-inventory-service/internal/pricing"
	"pos-inventory-service/internal/repair"
	"pos-inventory-service/internal/store"
)

const (
	defaultAppName = "PosInventoryService"
	healthInterval = 15 * time.Second
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("error loading configuration")
	}

	logger, logCloser, err := logging.New(logging.Options{
		Service:    defaultAppName,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("error initializing logger")
	}
	if envErr != nil {
		logger.Info().Msg(".env file not found, relying on system environment variables")
	}
	logger.Info().Str("app_env", cfg.AppEnv).Str("log_level", cfg.Log.Level).Msg("starting service")

	// --- Database Connection ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database connection")
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to ping database")
	}
	dbStore := store.NewPostgresStore(db, logger)
	if cfg.Postgres.ApplySchema {
		if err := dbStore.ApplySchema(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply database schema")
		}
	}
	logger.Info().Msg("database connection established")

	// --- Catalog and Services ---
	productCatalog := loadCatalog(cfg.Catalog.Path, logger)
	mapper := legacy.NewMapper(productCatalog)
	migrator := migration.NewService(mapper, pricing.NewResolver(), dbStore, dbStore, logger)
	repairer := repair.NewRepairer(productCatalog, migrator, logger)

	if cfg.Migration.AutoRun {
		runStartupMigration(migrator, cfg.Migration, logger)
	}

	// --- Setup & Start HTTP Server ---
	httpAPIHandler := api.NewHTTPHandler(dbStore, mapper, migrator, repairer, logger)
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger, cfg.HttpServer.RequestTimeout)
	registerHealthCheck(httpRouter, logger, dbStore, repairer)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Info().Str("port", cfg.HttpServer.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe error")
		}
		logger.Info().Msg("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	healthCtx, stopHealth := context.WithCancel(context.Background())
	grpcServer := setupGRPCServer(healthCtx, logger, dbStore, repairer)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.GrpcServer.Port).Msg("failed to listen for gRPC")
	}

	go func() {
		logger.Info().Str("port", cfg.GrpcServer.Port).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal().Err(err).Msg("gRPC server Serve error")
		}
		logger.Info().Msg("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, stopHealth, dbStore, logCloser, shutdownComplete)

	<-shutdownComplete
}

// loadCatalog reads the catalog at path, or the built-in one when path is empty. A broken
// catalog is logged and replaced by nil so the service still starts with the fallback
// category.
func loadCatalog(path string, logger zerolog.Logger) *catalog.Catalog {
	var (
		c   *catalog.Catalog
		err error
	)
	if path == "" {
		c, err = catalog.Default()
	} else {
		c, err = catalog.Load(path)
	}
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("product catalog unavailable, serving fallback categories")
		return nil
	}
	logger.Info().Strs("categories", c.CategoryIDs()).Msg("product catalog loaded")
	return c
}

func runStartupMigration(migrator *migration.Service, cfg config.MigrationConfig, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	res := repair.WithErrorBoundary(logger, func() (migration.Result, error) {
		return migrator.PerformAutoMigration(ctx, cfg.Backup)
	}, migration.Result{Skipped: true}, "startup migration")

	logger.Info().
		Bool("skipped", res.Skipped).
		Str("backup_id", res.BackupID).
		Int("cart_items", res.CartItems).
		Int("order_items", res.OrderItems).
		Int("orders", res.Orders).
		Msg("startup migration finished")
}

func setupBaseMiddleware(router *chi.Mux, logger zerolog.Logger, requestTimeout time.Duration) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	logger.Debug().Msg("base HTTP middleware registered")
}

func registerHealthCheck(router *chi.Mux, logger zerolog.Logger, db api.Pinger, catalogStatus api.CatalogStatus) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			logger.Warn().Err(err).Msg("health check DB ping failed")
		}
		catalogState := "loaded"
		if !catalogStatus.IsCategoryConfigAvailable() {
			catalogState = "fallback"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
			"catalog":     catalogState,
		})
	})
	logger.Debug().Str("path", healthPath).Msg("HTTP health check registered")
}

func setupGRPCServer(ctx context.Context, logger zerolog.Logger, db api.Pinger, catalogStatus api.CatalogStatus) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		api.UnaryRecoveryInterceptor(logger),
		api.UnaryLoggingInterceptor(logger),
	))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	reporter := api.NewHealthReporter(healthServer, db, catalogStatus, logger)
	go reporter.Run(ctx, healthInterval)

	// grpcurl and similar tools rely on reflection.
	reflection.Register(s)
	logger.Debug().Msg("gRPC health and reflection services registered")
	return s
}

func waitForShutdown(
	logger zerolog.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	stopHealth context.CancelFunc,
	dbStore *store.PostgresStore,
	logCloser io.Closer,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Info().Str("signal", receivedSignal.String()).Msg("starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopHealth()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server graceful shutdown failed")
	} else {
		logger.Info().Msg("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info().Msg("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn().Err(shutdownCtx.Err()).Msg("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	if err := dbStore.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing database connection")
	}

	logger.Info().Msg("graceful shutdown sequence completed")
	if logCloser != nil {
		_ = logCloser.Close()
	}
}
