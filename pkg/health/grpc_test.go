package health

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func startGRPC(t *testing.T, c *Checker) (grpc_health_v1.HealthClient, *GRPCUpdater) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	updater := c.RegisterWithGRPC(server, 20*time.Millisecond)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return grpc_health_v1.NewHealthClient(conn), updater
}

func servingStatus(client grpc_health_v1.HealthClient) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestGRPCUpdaterTracksReadiness(t *testing.T) {
	check := &stubCheck{name: "credentials"}
	c := New(WithFailureThreshold(1))
	c.AddReadinessCheck(check)

	client, updater := startGRPC(t, c)
	defer updater.Stop()

	assert.Eventually(t, func() bool {
		return servingStatus(client) == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	check.setErr(errors.New("down"))
	assert.Eventually(t, func() bool {
		return servingStatus(client) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGRPCUpdaterStop(t *testing.T) {
	c := New()
	client, updater := startGRPC(t, c)

	assert.Eventually(t, func() bool {
		return servingStatus(client) == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	updater.Stop()
	updater.Stop()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, servingStatus(client))
}
