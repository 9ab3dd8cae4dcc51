package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sevseg_batches_total",
			Help: "Total number of completed sampling batches",
		},
		[]string{"mode", "status"},
	)

	batchFailedRate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sevseg_batch_failed_rate",
			Help:    "Failed rate of completed batches",
			Buckets: []float64{0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1},
		},
	)

	framesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sevseg_frames_skipped_total",
			Help: "Frames dropped from a batch, by reason",
		},
		[]string{"reason"},
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sevseg_batch_duration_seconds",
			Help:    "Time spent capturing and classifying one batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	thresholdGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sevseg_threshold",
			Help: "Binarization threshold used for the most recent strip",
		},
	)

	runState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sevseg_run_state",
			Help: "Controller state (0 idle, 1 running, 2 finished, 3 cancelled, 4 errored)",
		},
	)
)

// Skip reasons.
const (
	skipNoFrame   = "no_frame"
	skipCrop      = "crop"
	skipThreshold = "threshold"
	skipClassify  = "classify"
)
