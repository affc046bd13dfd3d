// Package lookup keeps the visible result of a lookup session consistent
// when several resolutions overlap: only the most recently started one may
// publish its result.
package lookup

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrSuperseded is returned by a call that a newer call replaced.
	ErrSuperseded = errors.New("lookup superseded by a newer request")
	// ErrDismissed is returned by a call whose slot was dismissed mid-flight.
	ErrDismissed = errors.New("lookup dismissed")
)

// State says what a slot currently shows.
type State int

const (
	// Empty means nothing was looked up, or the slot was dismissed.
	Empty State = iota
	// Pending means a lookup is in flight; the previous result is gone.
	Pending
	// Ready means the latest lookup's outcome is applied.
	Ready
)

// Outcome is the last applied result of a slot. While a lookup is pending
// only Code is set.
type Outcome[T any] struct {
	Code  string
	Value T
	Err   error
}

// Slot holds the current result of one lookup session.
// The zero value is ready to use.
type Slot[T any] struct {
	mu        sync.Mutex
	seq       uint64
	cancel    context.CancelFunc
	current   Outcome[T]
	state     State
	dismissed bool
}

// Run starts fn for code, cancelling any call still in flight on the slot.
// The result is applied only if no newer Run or Dismiss happened meanwhile;
// otherwise Run returns ErrSuperseded or ErrDismissed. The previous result is
// cleared as soon as Run starts. If ctx ends before fn returns, the slot is
// left empty and ctx's error is returned.
func (s *Slot[T]) Run(ctx context.Context, code string, fn func(ctx context.Context, code string) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	id := s.seq
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.dismissed = false
	s.current = Outcome[T]{Code: code}
	s.state = Pending
	s.mu.Unlock()

	defer cancel()

	value, err := fn(runCtx, code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.seq {
		if s.dismissed {
			return zero, ErrDismissed
		}
		return zero, ErrSuperseded
	}
	s.cancel = nil

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.current = Outcome[T]{}
		s.state = Empty
		return zero, ctxErr
	}

	s.current = Outcome[T]{Code: code, Value: value, Err: err}
	s.state = Ready
	return value, err
}

// Current returns what the slot shows. The outcome is meaningful only when
// the state is Ready; a Pending outcome carries just the in-flight code.
func (s *Slot[T]) Current() (Outcome[T], State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.state
}

// Dismiss cancels in-flight work and clears the slot. Results arriving
// afterwards are discarded.
func (s *Slot[T]) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	s.dismissed = true
	s.current = Outcome[T]{}
	s.state = Empty
}
