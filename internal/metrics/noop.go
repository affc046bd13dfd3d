package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncLookupCacheHit() {}
func (n *NoopRecorder) IncLookupCacheMiss() {}
func (n *NoopRecorder) IncLookupResult(string) {}
func (n *NoopRecorder) ObserveLookupDuration(time.Duration) {}
func (n *NoopRecorder) IncPetRegistered() {}
func (n *NoopRecorder) IncPetUpdated() {}
func (n *NoopRecorder) IncPetDeleted() {}
func (n *NoopRecorder) ObserveAllocationAttempts(int) {}
func (n *NoopRecorder) IncAllocationExhausted() {}
func (n *NoopRecorder) IncScanEventPublished(string) {}
func (n *NoopRecorder) IncScanEventProcessed(string) {}
func (n *NoopRecorder) ObserveScanBatchSize(int) {}
func (n *NoopRecorder) SetScanQueueDepth(int64) {}
