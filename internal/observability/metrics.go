package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidder_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidder_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// reports ingested, labelled by kind (auction, result)
	ReportCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidder_reports_total",
			Help: "Total reports ingested",
		},
		[]string{"kind"},
	)

	// bid sets computed
	TickCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidder_ticks_total",
			Help: "Total bid submissions computed",
		},
	)

	// time spent computing a bid set
	TickLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bidder_tick_duration_seconds",
			Help:    "Duration of bid set computation",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
		},
	)

	// share of distribution capacity used in the rolling window
	UsedCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidder_used_capacity_ratio",
			Help: "Conversions in the distribution window over total capacity",
		},
	)

	// segments suppressed by the last admission run
	CutoffCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidder_admission_cutoff",
			Help: "Number of ranked segments suppressed by the last admission run",
		},
	)

	// admission runs labelled by outcome (open, shaped, degenerate)
	AdmissionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidder_admissions_total",
			Help: "Total capacity admission runs",
		},
		[]string{"outcome"},
	)

	// current price per segment
	SegmentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bidder_segment_price",
			Help: "Last submitted bid price per segment",
		},
		[]string{"segment"},
	)

	// errors mirroring bid sets to redis
	MirrorErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidder_mirror_errors_total",
			Help: "Total errors mirroring bid submissions",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		ReportCount,
		TickCount,
		TickLatency,
		UsedCapacity,
		CutoffCount,
		AdmissionCount,
		SegmentPrice,
		MirrorErrors,
	)
}
