// Package metrics exposes the Prometheus collectors shared by the admission
// layer and the asset service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission outcomes
const (
	OutcomeBlocked     = "blocked"
	OutcomeInvalid     = "invalid"
	OutcomeNewBlock    = "new_block"
	OutcomeRateLimited = "rate_limited"
)

var (
	// AdmissionRejections counts requests stopped by the admission layer
	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audio_library",
		Name:      "admission_rejections_total",
		Help:      "Requests rejected or flagged by the admission guard.",
	}, []string{"outcome", "route"})

	// SuspiciousRequests counts requests flagged by the pattern detector
	SuspiciousRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audio_library",
		Name:      "suspicious_requests_total",
		Help:      "Requests matching a suspicious URL or user-agent pattern.",
	}, []string{"reason"})

	// AssetOperations counts asset lifecycle operations by result
	AssetOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audio_library",
		Name:      "asset_operations_total",
		Help:      "Audio asset operations by kind and result.",
	}, []string{"operation", "result"})

	// UploadedBytes observes stored upload sizes
	UploadedBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "audio_library",
		Name:      "upload_size_bytes",
		Help:      "Size of stored audio uploads.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
	})
)

// Handler serves the Prometheus exposition format
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
