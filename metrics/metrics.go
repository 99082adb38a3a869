// api/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Total number of access checks by final decision.",
		},
		[]string{"decision"},
	)

	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts by result.",
		},
		[]string{"result"},
	)

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of currently active sessions.",
	})

	checkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "access_check_duration_seconds",
		Help:    "Access check latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// Init registers the collectors with the default registry.
func Init() {
	prometheus.MustRegister(accessChecksTotal, authAttemptsTotal, activeSessions, checkDuration)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCheck records one completed access check.
func ObserveCheck(decision string, seconds float64) {
	accessChecksTotal.WithLabelValues(decision).Inc()
	checkDuration.Observe(seconds)
}

// ObserveAuth records one authentication attempt ("success" or "failure").
func ObserveAuth(result string) {
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions updates the active-session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
