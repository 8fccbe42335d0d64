package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthorizeTotal  *prometheus.CounterVec
	BootstrapsTotal *prometheus.CounterVec
	RepairsTotal    *prometheus.CounterVec

	// Quota metrics
	QuotaRejectionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiredeck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hiredeck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthorizeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiredeck_authorize_total",
				Help: "Authorization decisions by outcome (granted, forbidden, claim_fallback, org_not_found, not_authenticated)",
			},
			[]string{"outcome"},
		),
		BootstrapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiredeck_bootstraps_total",
				Help: "Bootstrap reconciliations by result (created, existing)",
			},
			[]string{"result"},
		),
		RepairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiredeck_repairs_total",
				Help: "Repair reconciliations by whether a role was escalated",
			},
			[]string{"repaired"},
		),
		QuotaRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiredeck_quota_rejections_total",
				Help: "Job creations rejected by the active-job quota, by plan tier",
			},
			[]string{"plan_tier"},
		),
		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hiredeck_db_connections_active",
			Help: "Number of active database connections",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hiredeck_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthorizeTotal,
		m.BootstrapsTotal,
		m.RepairsTotal,
		m.QuotaRejectionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuthorize records an authorization decision. Safe on a nil receiver
// so callers constructed without metrics (tests) need no guards.
func (m *Metrics) RecordAuthorize(outcome string) {
	if m == nil {
		return
	}
	m.AuthorizeTotal.WithLabelValues(outcome).Inc()
}

// RecordBootstrap records a bootstrap reconciliation result.
func (m *Metrics) RecordBootstrap(result string) {
	if m == nil {
		return
	}
	m.BootstrapsTotal.WithLabelValues(result).Inc()
}

// RecordRepair records a repair reconciliation.
func (m *Metrics) RecordRepair(repaired bool) {
	if m == nil {
		return
	}
	m.RepairsTotal.WithLabelValues(strconv.FormatBool(repaired)).Inc()
}

// RecordQuotaRejection records a job creation rejected by the quota.
func (m *Metrics) RecordQuotaRejection(planTier string) {
	if m == nil {
		return
	}
	m.QuotaRejectionsTotal.WithLabelValues(planTier).Inc()
}

// RecordHTTPRequest records an HTTP request outcome.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
