// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control exposes the standard gRPC health service so that
// orchestrators can check userauth health.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the user API.
const ServiceName = "userauth.v1.UserAuth"

// HealthServer runs a gRPC server carrying only the health service.
type HealthServer struct {
	mu         sync.Mutex
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
}

// NewHealthServer creates a HealthServer. Both the overall status and
// ServiceName start out NOT_SERVING.
func NewHealthServer() *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{health: h}
}

// SetServing updates the reported status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Start begins listening on addr. The returned channel receives the
// server's exit error (nil on graceful stop) exactly once.
func (s *HealthServer) Start(addr string) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, oops.Code("CONTROL_ALREADY_RUNNING").Errorf("health server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("CONTROL_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)
	s.grpcServer = srv

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(listener)
		if err != nil {
			slog.Error("health gRPC server error", "error", err)
		}
		errCh <- err
	}()

	slog.Info("health gRPC server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop marks every service NOT_SERVING and shuts down gracefully.
func (s *HealthServer) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.Shutdown()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
		s.grpcServer = nil
	}
	s.listener = nil
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *HealthServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
