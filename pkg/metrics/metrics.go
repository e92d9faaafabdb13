package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "opsdash", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "opsdash", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	VaultOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "opsdash", Subsystem: "vault", Name: "operations_total", Help: "Vault operations by operation and result code."},
		[]string{"op", "result"},
	)
	VaultPinChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "opsdash", Subsystem: "vault", Name: "pin_checks_total", Help: "Folder PIN checks by decision."},
		[]string{"result"},
	)
	VaultBlobCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "opsdash", Subsystem: "vault", Name: "blob_cleanup_failures_total", Help: "Blob deletions that failed after their items were removed."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(VaultOperations)
	reg.MustRegister(VaultPinChecks)
	reg.MustRegister(VaultBlobCleanupFailures)
}
