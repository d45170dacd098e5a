// Package metrics defines Refind's Prometheus instruments.
//
// Instruments are registered on the default registry via promauto, so any
// package can increment them without wiring; the app exposes them at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts served requests by method, route pattern, and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refind_http_requests_total",
		Help: "HTTP requests served, by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by method and route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refind_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Registrations counts successful user registrations.
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refind_auth_registrations_total",
		Help: "Successful user registrations.",
	})

	// Logins counts successful logins.
	Logins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refind_auth_logins_total",
		Help: "Successful logins.",
	})

	// SessionRefreshes counts successful session-token renewals.
	SessionRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refind_auth_session_refreshes_total",
		Help: "Successful session token refreshes.",
	})

	// AuthFailures counts auth failures at the gate and on the auth endpoints,
	// by coarse reason ("invalid_token", "expired", "invalid_credentials", ...).
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refind_auth_failures_total",
		Help: "Authentication/authorization failures by reason.",
	}, []string{"reason"})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
