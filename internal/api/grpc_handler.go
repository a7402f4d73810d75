package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the name this server reports in the gRPC health protocol.
const ServiceName = "pos.inventory.v1.InventoryService"

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogStatus reports whether the product catalog was loaded.
type CatalogStatus interface {
	IsCategoryConfigAvailable() bool
}

// HealthReporter keeps the gRPC health status in line with the database and catalog.
type HealthReporter struct {
	server  *health.Server
	db      Pinger
	catalog CatalogStatus
	logger  zerolog.Logger
}

// NewHealthReporter creates a HealthReporter updating server.
func NewHealthReporter(server *health.Server, db Pinger, catalog CatalogStatus, logger zerolog.Logger) *HealthReporter {
	return &HealthReporter{
		server:  server,
		db:      db,
		catalog: catalog,
		logger:  logger.With().Str("component", "grpc_health").Logger(),
	}
}

// Check probes the dependencies once and publishes the result. The service is serving
// only when the database answers and the catalog is loaded.
func (h *HealthReporter) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	st := grpc_health_v1.HealthCheckResponse_SERVING

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.Ping(pingCtx); err != nil {
			h.logger.Warn().Err(err).Msg("health check database ping failed")
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	if h.catalog != nil && !h.catalog.IsCategoryConfigAvailable() {
		h.logger.Warn().Msg("health check: catalog unavailable")
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
	return st
}

// Run checks every interval until ctx is done, then marks the server as shutting down.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	h.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// UnaryLoggingInterceptor logs every unary call with its status code.
func UnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		event := logger.Debug()
		if code != codes.OK {
			event = logger.Warn().Err(err)
		}
		event.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("latency", time.Since(start)).
			Msg("gRPC call processed")
		return resp, err
	}
}

// UnaryRecoveryInterceptor turns a panicking handler into an Internal error.
func UnaryRecoveryInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().Interface("panic", rec).Str("method", info.FullMethod).Msg("recovered from gRPC handler panic")
				err = status.Errorf(codes.Internal, "internal error in %s", info.FullMethod)
			}
		}()
		return handler(ctx, req)
	}
}
