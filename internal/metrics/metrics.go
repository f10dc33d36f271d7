// Package metrics provides Prometheus metrics collection for NebulaEC.
//
// Driver Metrics:
//   - nebulaec_driver_operations_total: Driver calls by driver, operation and status
//   - nebulaec_driver_operation_duration_seconds: Driver call latency histogram
//   - nebulaec_bytes_encoded_total: Input bytes handed to Encode
//   - nebulaec_bytes_decoded_total: Output bytes returned by Decode
//   - nebulaec_fragments_reconstructed_total: Fragments rebuilt by Reconstruct
//
// Segment Metrics:
//   - nebulaec_segments_total: Segments processed by the segmenter
//   - nebulaec_segment_workers_active: Segment workers currently running
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DriverOperationsTotal counts driver calls
	DriverOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulaec_driver_operations_total",
			Help: "Total number of driver operations",
		},
		[]string{"driver", "operation", "status"},
	)

	// DriverOperationDuration tracks driver call duration in seconds
	DriverOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebulaec_driver_operation_duration_seconds",
			Help:    "Driver operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12), // 10µs to ~42s
		},
		[]string{"driver", "operation"},
	)

	// BytesEncoded tracks input bytes handed to Encode
	BytesEncoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulaec_bytes_encoded_total",
			Help: "Total bytes encoded",
		},
		[]string{"driver"},
	)

	// BytesDecoded tracks bytes returned by Decode
	BytesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulaec_bytes_decoded_total",
			Help: "Total bytes decoded",
		},
		[]string{"driver"},
	)

	// FragmentsReconstructed tracks fragments rebuilt by Reconstruct
	FragmentsReconstructed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulaec_fragments_reconstructed_total",
			Help: "Total fragments reconstructed",
		},
		[]string{"driver"},
	)

	// SegmentsTotal tracks segments processed by the segmenter
	SegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulaec_segments_total",
			Help: "Total segments processed",
		},
		[]string{"operation", "status"},
	)

	// SegmentWorkersActive tracks running segment workers
	SegmentWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nebulaec_segment_workers_active",
			Help: "Number of segment workers currently running",
		},
	)
)

// RecordDriverOperation records a driver call with its outcome and duration
func RecordDriverOperation(driver, operation string, err error, duration time.Duration) {
	DriverOperationsTotal.WithLabelValues(driver, operation, statusLabel(err)).Inc()
	DriverOperationDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

// AddBytesEncoded adds to the encoded bytes counter
func AddBytesEncoded(driver string, n int) {
	BytesEncoded.WithLabelValues(driver).Add(float64(n))
}

// AddBytesDecoded adds to the decoded bytes counter
func AddBytesDecoded(driver string, n int) {
	BytesDecoded.WithLabelValues(driver).Add(float64(n))
}

// AddFragmentsReconstructed adds to the reconstructed fragments counter
func AddFragmentsReconstructed(driver string, n int) {
	FragmentsReconstructed.WithLabelValues(driver).Add(float64(n))
}

// RecordSegment records one processed segment
func RecordSegment(operation string, err error) {
	SegmentsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

// IncrementSegmentWorkers increments the active segment workers gauge
func IncrementSegmentWorkers() {
	SegmentWorkersActive.Inc()
}

// DecrementSegmentWorkers decrements the active segment workers gauge
func DecrementSegmentWorkers() {
	SegmentWorkersActive.Dec()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
