// Package metrics holds the prometheus collectors shared by the storage
// layer and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cookbook", Name: "storage_operations_total", Help: "Storage collaborator calls by backend, operation and result."},
		[]string{"backend", "op", "result"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "cookbook", Name: "http_request_duration_seconds", Help: "HTTP API latency by route.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cookbook", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cookbook", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

// RegisterCollectors registers every collector with reg
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(StorageOperations)
	reg.MustRegister(RequestDuration)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
