package roomkit

import (
	"sync"
	"time"
)

// Throttle coalesces a high-frequency stream of values into at most one
// delivery per interval: the first call in a quiet period fires
// immediately (leading edge), and if further calls arrive before
// interval elapses, only the last of them fires once, at the end of the
// window (trailing edge).
//
// internal/statesync's Engine itself never schedules a flush (every
// mutation flushes its own batch, by design — see internal/statesync's
// engine.go); Throttle is what a caller wraps around onSync/onPersist
// when it wants wire-level coalescing instead of one message per
// mutation, e.g. cmd/room batching rapid-fire cell updates before
// internal/gateway pushes them to websockets. Because each call the engine makes is
// a fresh delta rather than a cumulative snapshot, values arriving
// inside the cooldown window must be folded together rather than one
// replacing another, or entries between the leading and trailing edge
// are lost; pass a merge func via NewMergingThrottle for that case. A
// plain NewThrottle (nil merge) keeps only the latest value, appropriate
// when T is itself already a full snapshot rather than a delta.
type Throttle[T any] struct {
	fn       func(T)
	interval time.Duration
	merge    func(existing, incoming T) T

	mu      sync.Mutex
	timer   *time.Timer
	pending *T
}

// NewThrottle returns a Throttle that calls fn with at most one value per
// interval, keeping only the most recently triggered value when several
// arrive within a window.
func NewThrottle[T any](interval time.Duration, fn func(T)) *Throttle[T] {
	return &Throttle[T]{fn: fn, interval: interval}
}

// NewMergingThrottle returns a Throttle that folds values arriving within
// a cooldown window together via merge(existing, incoming) instead of
// discarding all but the latest — the right choice when T is a delta
// (e.g. a *statesync.OrderedMap sync batch) rather than a full snapshot.
func NewMergingThrottle[T any](interval time.Duration, merge func(existing, incoming T) T, fn func(T)) *Throttle[T] {
	return &Throttle[T]{fn: fn, interval: interval, merge: merge}
}

// Trigger offers value for delivery, per the leading/trailing rule
// described on Throttle.
func (t *Throttle[T]) Trigger(value T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		// Quiet period: fire immediately and open the cooldown window.
		t.fn(value)
		t.timer = time.AfterFunc(t.interval, t.fireTrailing)
		return
	}

	// Inside the cooldown window: fold into whatever is already pending.
	if t.pending == nil {
		v := value
		t.pending = &v
		return
	}
	if t.merge != nil {
		merged := t.merge(*t.pending, value)
		t.pending = &merged
		return
	}
	v := value
	t.pending = &v
}

func (t *Throttle[T]) fireTrailing() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	if pending == nil {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	// A trailing delivery re-opens its own cooldown window, so a steady
	// stream still only delivers once per interval.
	t.timer = time.AfterFunc(t.interval, t.fireTrailing)
	t.mu.Unlock()

	t.fn(*pending)
}

// Stop cancels any pending trailing delivery.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
}
