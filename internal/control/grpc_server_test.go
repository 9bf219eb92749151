// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/holomush/userauth/pkg/errutil"
)

func startServer(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()

	srv := NewHealthServer()
	errCh, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not exit")
		}
	})

	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer_ReportsStatus(t *testing.T) {
	srv, client := startServer(t)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	srv.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	srv.SetServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
}

func TestHealthServer_DoubleStartFails(t *testing.T) {
	srv, _ := startServer(t)

	_, err := srv.Start("127.0.0.1:0")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONTROL_ALREADY_RUNNING")
}

func TestHealthServer_StopWithoutStart(t *testing.T) {
	srv := NewHealthServer()
	assert.NoError(t, srv.Stop(context.Background()))
	assert.Empty(t, srv.Addr())
}

func TestHealthServer_ListenFailure(t *testing.T) {
	srv := NewHealthServer()
	_, err := srv.Start("256.0.0.1:0")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONTROL_LISTEN_FAILED")
}
