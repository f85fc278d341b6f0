package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// This replaces direct access to global Prometheus metrics with dependency injection
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Ingestion metrics
	IncrementReports(kind string)

	// Bid computation metrics
	IncrementTicks()
	RecordTickLatency(duration time.Duration)
	SetSegmentPrice(segment string, price float64)

	// Capacity admission metrics
	SetUsedCapacity(fraction float64)
	SetCutoffCount(n int)
	IncrementAdmissions(outcome string)

	// Run mirror metrics
	IncrementMirrorErrors()
}

// PrometheusRegistry implements MetricsRegistry using the existing global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Ingestion metrics
func (r *PrometheusRegistry) IncrementReports(kind string) {
	ReportCount.WithLabelValues(kind).Inc()
}

// Bid computation metrics
func (r *PrometheusRegistry) IncrementTicks() {
	TickCount.Inc()
}

func (r *PrometheusRegistry) RecordTickLatency(duration time.Duration) {
	TickLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) SetSegmentPrice(segment string, price float64) {
	SegmentPrice.WithLabelValues(segment).Set(price)
}

// Capacity admission metrics
func (r *PrometheusRegistry) SetUsedCapacity(fraction float64) {
	UsedCapacity.Set(fraction)
}

func (r *PrometheusRegistry) SetCutoffCount(n int) {
	CutoffCount.Set(float64(n))
}

func (r *PrometheusRegistry) IncrementAdmissions(outcome string) {
	AdmissionCount.WithLabelValues(outcome).Inc()
}

// Run mirror metrics
func (r *PrometheusRegistry) IncrementMirrorErrors() {
	MirrorErrors.Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

// HTTP Request metrics
func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Ingestion metrics
func (r *NoOpRegistry) IncrementReports(kind string) {}

// Bid computation metrics
func (r *NoOpRegistry) IncrementTicks()                               {}
func (r *NoOpRegistry) RecordTickLatency(duration time.Duration)      {}
func (r *NoOpRegistry) SetSegmentPrice(segment string, price float64) {}

// Capacity admission metrics
func (r *NoOpRegistry) SetUsedCapacity(fraction float64)   {}
func (r *NoOpRegistry) SetCutoffCount(n int)               {}
func (r *NoOpRegistry) IncrementAdmissions(outcome string) {}

// Run mirror metrics
func (r *NoOpRegistry) IncrementMirrorErrors() {}
