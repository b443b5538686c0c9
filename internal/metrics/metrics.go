// Package metrics exposes the pipeline's Prometheus instrumentation,
// generalizing the teacher's internal/driver/jpeg compression counters
// (compressionLatency, compressionStatus, streamingSessions) from one
// fixed compression farm into per-stage vectors keyed by stage name.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// StageLatency records how long one worker's Process call takes,
	// mirroring the teacher's compressionLatency histogram.
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inferpipe_stage_latency_seconds",
			Help:    "Per-stage processing latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	// StageProcessed counts frames a stage has finished handling, by
	// outcome, mirroring the teacher's compressionStatus counter.
	StageProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inferpipe_stage_frames_total",
			Help: "Frames processed by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	// QueueDepth reports the resident item count of each inter-stage
	// queue, sampled by the Supervisor for quiescence + backpressure
	// observability (spec §5).
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inferpipe_queue_depth",
			Help: "Resident frame count of an inter-stage queue",
		},
		[]string{"queue"},
	)

	// FramesDropped counts frames evicted by a DropOldest queue (spec §5:
	// "the only place where the pipeline drops data").
	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inferpipe_frames_dropped_total",
			Help: "Frames dropped by a drop-oldest queue",
		},
		[]string{"queue"},
	)

	// SessionDuration times a whole pipeline run, end to end, mirroring
	// the teacher's sessionDuration histogram.
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inferpipe_session_duration_seconds",
			Help:    "Wall-clock duration of one pipeline run",
			Buckets: []float64{1, 5, 15, 60, 300, 1800, 7200},
		},
	)
)

// TotalDropped sums FramesDropped across every queue label, used by
// the Supervisor's progress dashboard to show a single running total.
func TotalDropped() uint64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		FramesDropped.Collect(ch)
		close(ch)
	}()
	var total uint64
	var m dto.Metric
	for metric := range ch {
		if err := metric.Write(&m); err == nil {
			total += uint64(m.GetCounter().GetValue())
		}
	}
	return total
}
