package lookup

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionHeader carries the client's lookup session id.
const SessionHeader = "X-Lookup-Session"

const (
	// DefaultMaxSessions bounds tracked sessions per instance.
	DefaultMaxSessions = 10000
	// DefaultIdleTTL is how long an unused session is kept.
	DefaultIdleTTL = 10 * time.Minute

	maxSessionIDLength = 128
)

// Tracker maps client session ids to slots. Sessions idle longer than the
// TTL, or pushed out by the size bound, are dismissed.
type Tracker[T any] struct {
	mu    sync.Mutex
	slots *expirable.LRU[string, *Slot[T]]
}

// NewTracker creates a Tracker. Non-positive arguments use the defaults.
func NewTracker[T any](maxSessions int, idleTTL time.Duration) *Tracker[T] {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	onEvict := func(_ string, slot *Slot[T]) {
		slot.Dismiss()
	}
	return &Tracker[T]{
		slots: expirable.NewLRU[string, *Slot[T]](maxSessions, onEvict, idleTTL),
	}
}

// Slot returns the slot for a session, creating it if needed, and refreshes
// its idle timer. ok is false for an empty or oversized session id.
func (t *Tracker[T]) Slot(sessionID string) (slot *Slot[T], ok bool) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	slot, found := t.slots.Peek(sessionID)
	if !found {
		slot = &Slot[T]{}
	}
	// Re-adding restarts the expiry clock.
	t.slots.Add(sessionID, slot)
	return slot, true
}

// Dismiss drops a session and cancels its in-flight lookup.
func (t *Tracker[T]) Dismiss(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots.Remove(strings.TrimSpace(sessionID))
}

// Len returns the number of tracked sessions.
func (t *Tracker[T]) Len() int {
	return t.slots.Len()
}
