package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BlogMetrics holds all Prometheus metrics for the blog service.
type BlogMetrics struct {
	PostOperations  *prometheus.CounterVec
	AuthAttempts    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DenylistChecks  *prometheus.CounterVec
}

// NewBlogMetrics registers the metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewBlogMetrics(reg prometheus.Registerer) *BlogMetrics {
	f := promauto.With(reg)
	return &BlogMetrics{
		PostOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "posts",
			Name:      "operations_total",
			Help:      "Post service operations by outcome code.",
		}, []string{"operation", "code"}), // code: OK or an error code
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication actions by outcome.",
		}, []string{"action", "outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		DenylistChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "token",
			Name:      "denylist_checks_total",
			Help:      "Bearer token revocation lookups by result.",
		}, []string{"result"}), // result: valid, revoked, error
	}
}

// ObservePost counts one post operation. A nil receiver is a no-op.
func (m *BlogMetrics) ObservePost(operation, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.PostOperations.WithLabelValues(operation, code).Inc()
}

func (m *BlogMetrics) ObserveAuth(action, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(action, outcome).Inc()
}

func (m *BlogMetrics) ObserveDenylist(result string) {
	if m == nil {
		return
	}
	m.DenylistChecks.WithLabelValues(result).Inc()
}
