// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login results.
const (
	LoginResultSuccess  = "success"
	LoginResultInvalid  = "invalid_credentials"
	LoginResultDisabled = "disabled"
	LoginResultError    = "error"
)

// Revocation reasons.
const (
	RevokeReasonLogout         = "logout"
	RevokeReasonUser           = "user"
	RevokeReasonAdmin          = "admin"
	RevokeReasonPasswordChange = "password_change"
	RevokeReasonExpired        = "expired"
)

// Guard decisions.
const (
	DecisionPublic        = "public"
	DecisionAuthenticated = "authenticated"
	DecisionRejected      = "rejected"
	DecisionForbidden     = "forbidden"
	DecisionUnavailable   = "unavailable"
)

var logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pixelvault_auth_logins_total",
		Help: "Total number of login attempts by result",
	},
	[]string{"result"},
)

var sessionsIssued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pixelvault_auth_sessions_issued_total",
		Help: "Total number of sessions issued",
	},
	[]string{"auth_type"},
)

var sessionsRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pixelvault_auth_sessions_revoked_total",
		Help: "Total number of sessions revoked",
	},
	[]string{"reason"},
)

var guardDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pixelvault_auth_guard_decisions_total",
		Help: "Total number of request guard decisions",
	},
	[]string{"decision"},
)

var operationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pixelvault_auth_operation_duration_seconds",
		Help:    "Auth service operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// Collectors returns the auth package collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{logins, sessionsIssued, sessionsRevoked, guardDecisions, operationDuration}
}

// RegisterMetrics registers auth metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Collectors()...)
}

// RecordGuardDecision increments the guard decision counter.
func RecordGuardDecision(decision string) {
	guardDecisions.WithLabelValues(decision).Inc()
}

func recordLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

func observeOperation(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
