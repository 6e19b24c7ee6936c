package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Data freshness
	MetricEntityFreshness = "entities.data_age_seconds"
	MetricSyncLatency     = "sync.push_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricTreesPlanted   = "business.trees_planted"
	MetricImportsStarted = "business.imports_started"
)
