// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"net/http"

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/internal/config"
	"github.com/holomush/userauth/internal/control"
	"github.com/holomush/userauth/internal/observability"
	"github.com/holomush/userauth/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendOpener opens the user store named by the configuration.
	// Default: openBackend
	BackendOpener func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// APIServerFactory creates the HTTP API server.
	// Default: web.NewServer
	APIServerFactory func(addr string, handler http.Handler) APIServer

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ControlServerFactory creates the gRPC health server.
	// Default: control.NewHealthServer
	ControlServerFactory func() ControlServer
}

// Backend is an opened user store.
type Backend struct {
	Users auth.UserStore
	Tx    auth.Transactor
	// Ready reports whether the store can serve requests.
	Ready func(ctx context.Context) bool
	Close func()
}

// APIServer interface wraps the methods used from web.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// ControlServer interface wraps the methods used from control.HealthServer.
type ControlServer interface {
	Start(addr string) (<-chan error, error)
	Stop(ctx context.Context) error
	SetServing(serving bool)
	Addr() string
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.BackendOpener == nil {
		out.BackendOpener = openBackend
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = func(addr string, handler http.Handler) APIServer {
			return web.NewServer(addr, handler)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.ControlServerFactory == nil {
		out.ControlServerFactory = func() ControlServer {
			return control.NewHealthServer()
		}
	}
	return &out
}
