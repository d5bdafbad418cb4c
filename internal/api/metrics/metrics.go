// Package metrics defines and registers the custom Prometheus metrics of the
// admin console. It is the single source of truth for metric names, labels,
// and help strings.
//
// The variables are registered with the default Prometheus registry on
// package initialisation and served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "console"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "invalid_credentials", "locked", "inactive" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success" or the failure class (e.g. "conflict", "validation")
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of account registrations, by result.",
	},
	[]string{"result"},
)

// ── Security metrics ──────────────────────────────────────────────────────────

// SecurityEventsTotal counts security events delivered by the metrics sink.
// Labels:
//   - type: the event type (e.g. "auth.login_failed")
//   - outcome: "failure" for events that record a rejected request, else "success"
var SecurityEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_events_total",
		Help:      "Total number of security events, by type and outcome.",
	},
	[]string{"type", "outcome"},
)

// RequestsRejectedTotal counts requests stopped by a guard middleware.
// Label:
//   - guard: "rate_limit", "csrf", "auth" or "permission"
var RequestsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_rejected_total",
		Help:      "Total number of requests rejected by a guard, by guard.",
	},
	[]string{"guard"},
)

// SessionStoreDuration measures session load and save latency.
// Label:
//   - op: "load" or "save"
var SessionStoreDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_store_duration_seconds",
		Help:      "Duration of session store operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)
