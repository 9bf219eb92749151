// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/internal/authn"
	"github.com/holomush/userauth/internal/observability"
	"github.com/holomush/userauth/pkg/errutil"
)

var tracer = otel.Tracer("github.com/holomush/userauth/internal/web")

// Service is the account API the handlers drive. *auth.Service
// implements it.
type Service interface {
	Register(ctx context.Context, email, secret string) (*auth.User, error)
	VerifyLogin(ctx context.Context, email, secret string) (bool, error)
	CheckCredentials(ctx context.Context, email, secret string) (*auth.User, bool, error)
	CreateSession(ctx context.Context, email string) (string, bool, error)
	ResolveSession(ctx context.Context, token string) (*auth.User, bool, error)
	DestroySession(ctx context.Context, userID ulid.ULID) error
	IssueResetToken(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, resetToken, newSecret string) error
}

// Recorder receives request and session counters. *observability.Metrics
// implements it.
type Recorder interface {
	RecordSessionEvent(event string)
	RecordRequest(route string, status int)
}

// Config configures NewHandler.
type Config struct {
	Service Service
	// Middleware wraps every route, normally authn.Middleware. Optional.
	Middleware    func(http.Handler) http.Handler
	SessionCookie string       // defaults to authn.DefaultSessionCookie
	Recorder      Recorder     // optional
	Logger        *slog.Logger // optional, defaults to slog.Default()
}

type handler struct {
	svc      Service
	cookie   string
	recorder Recorder
	logger   *slog.Logger
}

// NewHandler builds the API router.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("service is required")
	}
	h := &handler{
		svc:      cfg.Service,
		cookie:   cfg.SessionCookie,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
	if h.cookie == "" {
		h.cookie = authn.DefaultSessionCookie
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		var next http.Handler = fn
		if cfg.Middleware != nil {
			next = cfg.Middleware(next)
		}
		mux.Handle(pattern, h.instrument(pattern, next))
	}

	route("GET /{$}", h.home)
	route("GET /api/v1/status", h.status)
	route("POST /users", h.register)
	route("POST /sessions", h.login)
	route("DELETE /sessions", h.logout)
	route("GET /profile", h.profile)
	route("POST /reset_password", h.issueResetToken)
	route("PUT /reset_password", h.updatePassword)
	route("GET /api/v1/users/me", h.me)
	route("POST /auth_session/login", h.sessionLogin)
	route("DELETE /auth_session/logout", h.sessionLogout)

	return mux, nil
}

// instrument wraps each request in a span named after its route pattern
// and counts it once finished.
func (h *handler) instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), pattern, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		status := sw.code()
		span.SetAttributes(
			attribute.String("http.route", pattern),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if h.recorder != nil {
			h.recorder.RecordRequest(pattern, status)
		}
	})
}

func (h *handler) event(name string) {
	if h.recorder != nil {
		h.recorder.RecordSessionEvent(name)
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), h.logger, msg, err, "path", r.URL.Path)
	status := statusFor(err)
	writeError(w, status, http.StatusText(status))
}

// sessionUser resolves the session cookie. ok is false when the request
// carries no cookie or the token matches no user.
func (h *handler) sessionUser(r *http.Request) (*auth.User, bool, error) {
	c, err := r.Cookie(h.cookie)
	if err != nil {
		return nil, false, nil
	}
	//nolint:wrapcheck // service errors are already coded
	return h.svc.ResolveSession(r.Context(), c.Value)
}

func (h *handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) home(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "Bienvenue")
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if email == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.svc.Register(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			writeMessage(w, http.StatusBadRequest, "email already registered")
			return
		}
		h.fail(w, r, "register failed", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user registered", "user_id", user.ID.String())
	writeJSON(w, http.StatusOK, map[string]string{"email": user.Email, "message": "user created"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if email == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ok, err := h.svc.VerifyLogin(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, ok, err := h.svc.CreateSession(r.Context(), email)
	if err != nil {
		h.fail(w, r, "create session failed", err)
		return
	}
	if !ok {
		// Deleted between the check and the session write.
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.event(observability.SessionCreated)
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "logged in"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok, err := h.sessionUser(r)
	if err != nil {
		h.fail(w, r, "resolve session failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := h.svc.DestroySession(r.Context(), user.ID); err != nil {
		h.fail(w, r, "destroy session failed", err)
		return
	}

	h.event(observability.SessionDestroyed)
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	user, ok, err := h.sessionUser(r)
	if err != nil {
		h.fail(w, r, "resolve session failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": user.Email})
}

func (h *handler) issueResetToken(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	if email == "" {
		writeMessage(w, http.StatusBadRequest, "email is required")
		return
	}

	token, err := h.svc.IssueResetToken(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		h.fail(w, r, "issue reset token failed", err)
		return
	}

	h.event(observability.ResetIssued)
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "reset_token": token})
}

func (h *handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	token := r.PostFormValue("reset_token")
	password := r.PostFormValue("new_password")
	if email == "" || token == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "email, reset_token and new_password are required")
		return
	}

	if err := h.svc.UpdatePassword(r.Context(), token, password); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		h.fail(w, r, "update password failed", err)
		return
	}

	h.event(observability.PasswordUpdated)
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "Password updated"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (h *handler) sessionLogin(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "password missing")
		return
	}

	user, ok, err := h.svc.CheckCredentials(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, ok, err := h.svc.CreateSession(r.Context(), user.Email)
	if err != nil {
		h.fail(w, r, "create session failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.event(observability.SessionCreated)
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, viewOf(user))
}

func (h *handler) sessionLogout(w http.ResponseWriter, r *http.Request) {
	user := authn.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err := h.svc.DestroySession(r.Context(), user.ID); err != nil {
		h.fail(w, r, "destroy session failed", err)
		return
	}

	h.event(observability.SessionDestroyed)
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, struct{}{})
}

var _ Service = (*auth.Service)(nil)
