// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"log/slog"
	"net/http"

	"github.com/holomush/userauth/pkg/errutil"
)

// Observer is notified of every decided authentication attempt.
type Observer interface {
	ObserveAuth(scheme Scheme, outcome Outcome)
}

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	Dispatcher *Dispatcher
	Excluded   *ExcludedPaths
	Observer   Observer     // optional
	Logger     *slog.Logger // optional, defaults to slog.Default()
}

// Response bodies written by Middleware.
const (
	bodyUnauthorized = `{"error":"Unauthorized"}`
	bodyForbidden    = `{"error":"Forbidden"}`
	bodyUnavailable  = `{"error":"Service Unavailable"}`
)

// Middleware gates requests on authentication:
//   - excluded paths and ModeNone pass through untouched
//   - no credentials at all is 401
//   - credentials that resolve to no user are 403
//   - a collaborator failure is 503
//
// Authenticated requests continue with the user stored via WithUser.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Dispatcher == nil || cfg.Dispatcher.Mode() == ModeNone {
				next.ServeHTTP(w, r)
				return
			}

			req := FromHTTP(r)
			if !cfg.Excluded.RequiresAuth(req.Path()) {
				next.ServeHTTP(w, r)
				return
			}

			if !cfg.Dispatcher.HasCredentials(req) {
				writeJSONError(w, http.StatusUnauthorized, bodyUnauthorized)
				return
			}

			authenticator, scheme := cfg.Dispatcher.Select(req)
			result := authenticator.Authenticate(r.Context(), req)
			if cfg.Observer != nil {
				cfg.Observer.ObserveAuth(scheme, result.Outcome)
			}

			switch result.Outcome {
			case Authenticated:
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), result.User)))
			case Failed:
				errutil.LogErrorContext(r.Context(), logger, "authentication failed", result.Err,
					"path", req.Path(),
					"scheme", string(scheme))
				writeJSONError(w, http.StatusServiceUnavailable, bodyUnavailable)
			default:
				logger.DebugContext(r.Context(), "request has no identity",
					"path", req.Path(),
					"scheme", string(scheme),
					"remote_addr", r.RemoteAddr)
				writeJSONError(w, http.StatusForbidden, bodyForbidden)
			}
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
