// Package observability provides Prometheus metrics for stream decoding
// and HTTP middleware for the mock stream server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionBuckets suit streamed generations, from 50ms to 5 minutes.
var SessionBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// FramesTotal counts frames read off the wire by protocol (sse, ndjson, websocket).
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwire_frames_total",
			Help: "Frames read",
		},
		[]string{"protocol"},
	)

	// DecodeErrorsTotal counts per-value decode failures by error kind.
	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwire_decode_errors_total",
			Help: "Decode errors",
		},
		[]string{"kind"},
	)

	// UnknownTagsTotal counts payloads that fell back to the unknown variant.
	UnknownTagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwire_unknown_tags_total",
			Help: "Payloads decoded as unknown",
		},
		[]string{"set"},
	)

	// SessionsActive tracks sessions currently reading a stream.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamwire_sessions_active",
			Help: "Active stream sessions",
		},
	)

	// SessionResultsTotal counts collected results by operation kind and status.
	SessionResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwire_session_results_total",
			Help: "Collected session results",
		},
		[]string{"kind", "status"},
	)

	// ReorderedDeltasTotal counts deltas that arrived ahead of an earlier sequence number.
	ReorderedDeltasTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamwire_reordered_deltas_total",
			Help: "Deltas buffered for reordering",
		},
	)

	// SessionDuration records the time from first read to the terminal value.
	SessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamwire_session_duration_seconds",
			Help:    "Session duration",
			Buckets: SessionBuckets,
		},
		[]string{"kind"},
	)

	// MockStreamsTotal counts streams served by the mock server by route and status class.
	MockStreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwire_mock_streams_total",
			Help: "Mock streams served",
		},
		[]string{"route", "status"},
	)

	// MockStreamsActive tracks mock streams in flight.
	MockStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamwire_mock_streams_active",
			Help: "Active mock streams",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FramesTotal,
		DecodeErrorsTotal,
		UnknownTagsTotal,
		SessionsActive,
		SessionResultsTotal,
		ReorderedDeltasTotal,
		SessionDuration,
		MockStreamsTotal,
		MockStreamsActive,
	)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
