// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Lookup outcomes reported by IncLookupResult.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Public lookup metrics
	IncLookupCacheHit()
	IncLookupCacheMiss()
	IncLookupResult(result string)
	ObserveLookupDuration(duration time.Duration)

	// Pet management metrics
	IncPetRegistered()
	IncPetUpdated()
	IncPetDeleted()

	// Identifier allocation metrics
	ObserveAllocationAttempts(attempts int)
	IncAllocationExhausted()

	// Scan event pipeline metrics
	IncScanEventPublished(status string) // status: "success" or "dropped"
	IncScanEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveScanBatchSize(size int)
	SetScanQueueDepth(depth int64)
}
