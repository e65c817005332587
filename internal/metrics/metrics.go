package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendly_http_requests_total",
		Help: "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendly_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendly_registrations_total",
		Help: "Admission outcomes.",
	}, []string{"outcome"})

	PaymentConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendly_payment_confirmations_total",
		Help: "Payment confirmation attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	// LedgerUnderflows counts clamped decrement attempts; any increase
	// means the ledger drifted below the true count.
	LedgerUnderflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendly_ledger_underflow_clamped_total",
		Help: "Attendee counter decrements clamped at zero.",
	})

	DriftCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendly_ledger_drift_corrections_total",
		Help: "Attendee counters overwritten by the drift auditor.",
	})
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
