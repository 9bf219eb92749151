// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/userauth/internal/authn"
)

// Session event labels.
const (
	SessionCreated   = "created"
	SessionDestroyed = "destroyed"
	ResetIssued      = "reset_issued"
	PasswordUpdated  = "password_updated"
)

// Metrics contains the userauth Prometheus metrics.
type Metrics struct {
	AuthAttempts  *prometheus.CounterVec
	SessionEvents *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the userauth metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userauth_auth_attempts_total",
				Help: "Total number of authentication attempts by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		SessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userauth_session_events_total",
				Help: "Total number of session and password reset events by type",
			},
			[]string{"event"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userauth_requests_total",
				Help: "Total number of API requests by route and status",
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(m.AuthAttempts)
	reg.MustRegister(m.SessionEvents)
	reg.MustRegister(m.RequestsTotal)

	return m
}

// ObserveAuth counts an authentication attempt. It implements
// authn.Observer.
func (m *Metrics) ObserveAuth(scheme authn.Scheme, outcome authn.Outcome) {
	m.AuthAttempts.WithLabelValues(string(scheme), outcome.String()).Inc()
}

// RecordSessionEvent counts a session or reset event.
func (m *Metrics) RecordSessionEvent(event string) {
	m.SessionEvents.WithLabelValues(event).Inc()
}

// RecordRequest counts a finished API request.
func (m *Metrics) RecordRequest(route string, status int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

var _ authn.Observer = (*Metrics)(nil)
