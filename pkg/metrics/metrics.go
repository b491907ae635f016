package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "signflow"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "documents_created_total", Help: "Agreements created."},
	)
	DocumentsSigned = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "documents_signed_total", Help: "Agreements moved to SIGNED."},
	)
	SignFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sign_failures_total", Help: "Failed sign attempts by reason."},
		[]string{"reason"},
	)
	ImportItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "import_items_total", Help: "Bulk import items by outcome."},
		[]string{"outcome"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Signing link notifications by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed, RateLimitRejected, DocumentsCreated, DocumentsSigned, SignFailures, ImportItems, Notifications)
}
