package api

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeCatalogStatus bool

func (f fakeCatalogStatus) IsCategoryConfigAvailable() bool { return bool(f) }

func servingStatus(t *testing.T, srv *health.Server, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthReporter_Check(t *testing.T) {
	cases := []struct {
		name    string
		pingErr error
		catalog bool
		want    grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{"healthy", nil, true, grpc_health_v1.HealthCheckResponse_SERVING},
		{"database down", errors.New("dial tcp: refused"), true, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
		{"catalog missing", nil, false, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := health.NewServer()
			reporter := NewHealthReporter(srv, fakePinger{err: tc.pingErr}, fakeCatalogStatus(tc.catalog), zerolog.Nop())

			assert.Equal(t, tc.want, reporter.Check(context.Background()))
			assert.Equal(t, tc.want, servingStatus(t, srv, ServiceName))
			assert.Equal(t, tc.want, servingStatus(t, srv, ""))
		})
	}
}

func TestUnaryRecoveryInterceptor(t *testing.T) {
	var buf bytes.Buffer
	interceptor := UnaryRecoveryInterceptor(zerolog.New(&buf))
	info := &grpc.UnaryServerInfo{FullMethod: "/pos.inventory.v1.InventoryService/Quote"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("nil catalog")
	})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, buf.String(), "nil catalog")

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestUnaryLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	interceptor := UnaryLoggingInterceptor(zerolog.New(&buf))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "NotFound")
	assert.Contains(t, buf.String(), "/grpc.health.v1.Health/Check")
}
