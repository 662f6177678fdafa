package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptdesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Quota Metrics
	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_quota_decisions_total",
			Help: "Total number of quota checks by outcome",
		},
		[]string{"category", "tier", "code"},
	)

	UsageCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_usage_commits_total",
			Help: "Total number of usage commits",
		},
		[]string{"status"},
	)

	ItemsSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_items_saved_total",
			Help: "Total number of saved items",
		},
		[]string{"category"},
	)

	ItemSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptdesk_item_size_bytes",
			Help:    "Size of saved items in bytes",
			Buckets: prometheus.ExponentialBuckets(128, 2, 14), // 128B to 1MB
		},
		[]string{"category"},
	)

	// Generation Metrics
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_generations_total",
			Help: "Total number of text generation calls",
		},
		[]string{"utility", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptdesk_generation_duration_seconds",
			Help:    "Text generation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"utility"},
	)

	// Event Metrics
	UsageEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_usage_events_total",
			Help: "Total number of usage events by direction and status",
		},
		[]string{"direction", "status"},
	)

	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_reconcile_runs_total",
			Help: "Total number of usage reconciliation runs",
		},
		[]string{"status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptdesk_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptdesk_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptdesk_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordItemSaved records a saved item
func RecordItemSaved(category string, size int64) {
	ItemsSavedTotal.WithLabelValues(category).Inc()
	ItemSizeBytes.WithLabelValues(category).Observe(float64(size))
}

// RecordGeneration records a generation call
func RecordGeneration(utility, status string, duration float64) {
	GenerationsTotal.WithLabelValues(utility, status).Inc()
	GenerationDuration.WithLabelValues(utility).Observe(duration)
}

// RecordUsageEvent records a published or consumed usage event
func RecordUsageEvent(direction, status string) {
	UsageEventsTotal.WithLabelValues(direction, status).Inc()
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
