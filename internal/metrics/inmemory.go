package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LookupCacheHits       uint64
	LookupCacheMisses     uint64
	LookupResults         map[string]uint64
	LookupDurationCount   uint64
	LookupDurationTotalNs int64
	PetsRegistered        uint64
	PetsUpdated           uint64
	PetsDeleted           uint64
	AllocationAttempts    uint64
	AllocationsExhausted  uint64
	ScanEventsPublished   map[string]uint64
	ScanEventsProcessed   map[string]uint64
	ScanQueueDepth        int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	lookupCacheHits       uint64
	lookupCacheMisses     uint64
	lookupDurationCount   uint64
	lookupDurationTotalNs int64
	petsRegistered        uint64
	petsUpdated           uint64
	petsDeleted           uint64
	allocationAttempts    uint64
	allocationsExhausted  uint64
	scanQueueDepth        int64

	mu            sync.Mutex
	lookupResults map[string]uint64
	scanPublished map[string]uint64
	scanProcessed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		lookupResults: make(map[string]uint64),
		scanPublished: make(map[string]uint64),
		scanProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		LookupCacheHits:       atomic.LoadUint64(&m.lookupCacheHits),
		LookupCacheMisses:     atomic.LoadUint64(&m.lookupCacheMisses),
		LookupResults:         copyCounts(m.lookupResults),
		LookupDurationCount:   atomic.LoadUint64(&m.lookupDurationCount),
		LookupDurationTotalNs: atomic.LoadInt64(&m.lookupDurationTotalNs),
		PetsRegistered:        atomic.LoadUint64(&m.petsRegistered),
		PetsUpdated:           atomic.LoadUint64(&m.petsUpdated),
		PetsDeleted:           atomic.LoadUint64(&m.petsDeleted),
		AllocationAttempts:    atomic.LoadUint64(&m.allocationAttempts),
		AllocationsExhausted:  atomic.LoadUint64(&m.allocationsExhausted),
		ScanEventsPublished:   copyCounts(m.scanPublished),
		ScanEventsProcessed:   copyCounts(m.scanProcessed),
		ScanQueueDepth:        atomic.LoadInt64(&m.scanQueueDepth),
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *InMemoryRecorder) incLabel(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

// IncLookupCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncLookupCacheHit() {
	atomic.AddUint64(&m.lookupCacheHits, 1)
}

// IncLookupCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncLookupCacheMiss() {
	atomic.AddUint64(&m.lookupCacheMisses, 1)
}

// IncLookupResult counts a lookup outcome.
func (m *InMemoryRecorder) IncLookupResult(result string) {
	m.incLabel(m.lookupResults, result)
}

// ObserveLookupDuration records lookup duration.
func (m *InMemoryRecorder) ObserveLookupDuration(duration time.Duration) {
	atomic.AddUint64(&m.lookupDurationCount, 1)
	atomic.AddInt64(&m.lookupDurationTotalNs, duration.Nanoseconds())
}

// IncPetRegistered increments pet registered counter.
func (m *InMemoryRecorder) IncPetRegistered() {
	atomic.AddUint64(&m.petsRegistered, 1)
}

// IncPetUpdated increments pet updated counter.
func (m *InMemoryRecorder) IncPetUpdated() {
	atomic.AddUint64(&m.petsUpdated, 1)
}

// IncPetDeleted increments pet deleted counter.
func (m *InMemoryRecorder) IncPetDeleted() {
	atomic.AddUint64(&m.petsDeleted, 1)
}

// ObserveAllocationAttempts adds the attempts spent on one allocation.
func (m *InMemoryRecorder) ObserveAllocationAttempts(attempts int) {
	atomic.AddUint64(&m.allocationAttempts, uint64(attempts))
}

// IncAllocationExhausted counts allocations that ran out of attempts.
func (m *InMemoryRecorder) IncAllocationExhausted() {
	atomic.AddUint64(&m.allocationsExhausted, 1)
}

// IncScanEventPublished counts publish outcomes.
func (m *InMemoryRecorder) IncScanEventPublished(status string) {
	m.incLabel(m.scanPublished, status)
}

// IncScanEventProcessed counts worker outcomes.
func (m *InMemoryRecorder) IncScanEventProcessed(status string) {
	m.incLabel(m.scanProcessed, status)
}

// ObserveScanBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveScanBatchSize(int) {}

// SetScanQueueDepth stores the last reported queue depth.
func (m *InMemoryRecorder) SetScanQueueDepth(depth int64) {
	atomic.StoreInt64(&m.scanQueueDepth, depth)
}
