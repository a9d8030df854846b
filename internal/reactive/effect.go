package reactive

// Effect is computed(fn) plus cleanup handling"): if fn's
// returned value is callable (a func()), it is stored as a cleanup
// function, invoked before the next re-evaluation and when the effect's
// subscriptions are released (Close), exactly once either way.
type Effect struct {
	fn           func() any
	cleanup      func()
	unsubscribes []func()
}

// NewEffect constructs and eagerly runs fn once under a tracker,
// subscribing to every cell it read so that fn re-runs (untracked,
// dependency set frozen) on any subsequent dependency emission, matching
// Computed's re-evaluation rule.
func NewEffect(fn func() any) *Effect {
	e := &Effect{fn: fn}
	result, deps := captureDeps(fn)
	e.setCleanup(result)
	for dep := range deps {
		e.subscribeDep(dep)
	}
	return e
}

func (e *Effect) setCleanup(result any) {
	if fn, ok := result.(func()); ok {
		e.cleanup = fn
		return
	}
	e.cleanup = nil
}

func (e *Effect) subscribeDep(dep Cell) {
	first := true
	unsub := dep.Subscribe(func(Change) {
		if first {
			first = false
			return
		}
		e.rerun()
	})
	e.unsubscribes = append(e.unsubscribes, unsub)
}

func (e *Effect) rerun() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	result := Untracked(e.fn)
	e.setCleanup(result)
}

// Close runs any pending cleanup and releases every dependency
// subscription. Safe to call more than once.
func (e *Effect) Close() {
	for _, unsub := range e.unsubscribes {
		unsub()
	}
	e.unsubscribes = nil
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}
