package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the registration workflow.
type Metrics struct {
	ApplicationsVerified   prometheus.Counter
	VerificationsBlocked   prometheus.Counter
	ApplicationsUnverified prometheus.Counter
	DocumentsApproved      prometheus.Counter
	DocumentsRejected      prometheus.Counter
	DocumentsReuploaded    prometheus.Counter
	CertificatesIssued     prometheus.Counter
	NotificationFailures   prometheus.Counter
	IssuanceFailures       prometheus.Counter
}

// New creates and registers all registration metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_applications_verified_total",
			Help: "Applications verified by a registrar",
		}),
		VerificationsBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_verifications_blocked_total",
			Help: "Verification attempts refused by the rejected-document gate",
		}),
		ApplicationsUnverified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_applications_unverified_total",
			Help: "Applications returned to unverified state",
		}),
		DocumentsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_documents_approved_total",
			Help: "Documents approved during review",
		}),
		DocumentsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_documents_rejected_total",
			Help: "Documents rejected during review",
		}),
		DocumentsReuploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_documents_reuploaded_total",
			Help: "Rejected documents replaced with fresh content",
		}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_certificates_issued_total",
			Help: "Certificates created (idempotent re-issues not counted)",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_notification_failures_total",
			Help: "Notification dispatches that failed and were swallowed",
		}),
		IssuanceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vivaha_issuance_failures_total",
			Help: "Certificate issuance attempts from verify that failed and were deferred",
		}),
	}
}
