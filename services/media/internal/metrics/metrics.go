// Package metrics holds the Prometheus series of the upload pipeline.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// Pipeline stages observed by StageDuration.
const (
	StageValidate  = "validate"
	StageTranscode = "transcode"
	StageStore     = "store"
	StagePersist   = "persist"
	StageCleanup   = "cleanup"
)

// Outcome label values for UploadsTotal.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalidMedia   = "invalid_media"
	OutcomeOwnerNotFound  = "owner_not_found"
	OutcomeTranscodeError = "transcode_error"
	OutcomeStorageFailure = "storage_failure"
	OutcomeError          = "error"
)

var (
	// UploadsTotal counts ReplaceOwnerImage calls by owner kind and outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Total number of image replacements by owner kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_stage_duration_seconds",
			Help:    "Duration of each upload pipeline stage in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_upload_bytes",
			Help:    "Size of accepted raw uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// CleanupFailures counts superseded or compensating deletions that failed
	// and left an orphan behind.
	CleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cleanup_failures_total",
			Help: "Total number of file or record deletions that failed after a replacement",
		},
		[]string{"target"},
	)

	TraversalRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_path_traversal_rejections_total",
			Help: "Total number of retrieval paths rejected as malformed or escaping the storage root",
		},
	)
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Outcome maps a pipeline error to its UploadsTotal label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrInvalidMedia):
		return OutcomeInvalidMedia
	case errors.Is(err, domain.ErrOwnerNotFound):
		return OutcomeOwnerNotFound
	case errors.Is(err, domain.ErrTranscode):
		return OutcomeTranscodeError
	case errors.Is(err, domain.ErrStorage):
		return OutcomeStorageFailure
	default:
		return OutcomeError
	}
}
