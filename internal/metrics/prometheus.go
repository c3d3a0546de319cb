package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded for ledger operations.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector owns a private registry with the service's ledger and HTTP
// metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	registry         *prometheus.Registry
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	amountMoved      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		operationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time taken to complete a ledger operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		amountMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_amount_moved_total",
			Help: "Sum of committed amounts in minor units",
		}, []string{"operation"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordOperation counts one ledger operation. amount is added to the moved
// total only for successful money movements.
func (c *Collector) RecordOperation(operation, outcome string, amount int64, duration time.Duration) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	if outcome == OutcomeSuccess && amount > 0 {
		c.amountMoved.WithLabelValues(operation).Add(float64(amount))
	}
}

// RecordRequest counts one served HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
