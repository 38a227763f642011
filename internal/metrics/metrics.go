package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts session lifecycle transitions.
	// Labels:
	//   - outcome: "created", "renewed"
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_sessions_total",
			Help: "Total number of sessions created or renewed",
		},
		[]string{"outcome"},
	)

	// SessionLogoutsTotal counts sessions deactivated, by cause ("logout", "revoked")
	SessionLogoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_session_logouts_total",
			Help: "Total number of sessions deactivated",
		},
		[]string{"cause"},
	)

	// IdentityFailuresTotal counts rejected credentials.
	// Labels:
	//   - method: "bearer", "certificate"
	//   - reason: short machine readable cause
	IdentityFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_identity_failures_total",
			Help: "Total number of identity resolution failures",
		},
		[]string{"method", "reason"},
	)

	// FallbackResolutionsTotal counts bearer requests bound to the most recent session
	// because the token carried no usable session reference.
	FallbackResolutionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_identity_fallback_resolutions_total",
			Help: "Total number of identities resolved by most-recent-session fallback",
		},
	)

	// ProgressReportsTotal counts accepted progress reports by device type
	ProgressReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_progress_reports_total",
			Help: "Total number of watch progress reports accepted",
		},
		[]string{"device_type"},
	)

	// CertificatesIssuedTotal counts device certificates issued at enrollment
	CertificatesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_certificates_issued_total",
			Help: "Total number of device certificates issued",
		},
	)
)
