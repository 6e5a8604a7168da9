package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	prepamsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prepams_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	prepamsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prepams_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	prepamsRewardsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prepams_rewards_issued_total",
		Help: "Total reward entries appended to the ledger.",
	})

	prepamsPayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prepams_payouts_total",
		Help: "Total payout entries appended to the ledger.",
	})

	prepamsLedgerEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prepams_ledger_entries",
		Help: "Number of entries in the issuer ledger.",
	})

	prepamsStudyProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prepams_study_probes_total",
		Help: "Total web-based study reachability probes by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		prepamsRequestsTotal.WithLabelValues(method, path, status).Inc()
		prepamsRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordRewardIssued records one successful reward issuance.
func RecordRewardIssued() {
	prepamsRewardsIssuedTotal.Inc()
}

// RecordPayout records one processed payout.
func RecordPayout() {
	prepamsPayoutsTotal.Inc()
}

// SetLedgerEntries sets the ledger length gauge.
func SetLedgerEntries(n int) {
	prepamsLedgerEntries.Set(float64(n))
}

// RecordStudyProbe records a study URL reachability probe result.
func RecordStudyProbe(success bool) {
	if success {
		prepamsStudyProbesTotal.WithLabelValues("success").Inc()
	} else {
		prepamsStudyProbesTotal.WithLabelValues("failure").Inc()
	}
}
