package reactive

// Computed is a read-only derived cell. Its dependency set is
// captured once, on construction, by running fn with a tracker installed;
// re-evaluation never re-scans dependencies, so fn must read every cell
// its result may ever depend on during that first evaluation.
type Computed struct {
	bus          *bus
	fn           func() any
	value        any
	unsubscribes []func()
}

// NewComputed constructs and eagerly evaluates fn once, capturing its
// dependency set and subscribing to each dependency so the computed
// re-evaluates on every subsequent emission. A dependency-free computed
// is effectively constant: nothing will ever trigger re-evaluation, so
// the one evaluation already performed is the only one that can ever
// run.
func NewComputed(fn func() any) *Computed {
	c := &Computed{bus: newBus(), fn: fn}
	value, deps := captureDeps(fn)
	c.value = value
	for dep := range deps {
		c.subscribeDep(dep)
	}
	return c
}

func (c *Computed) subscribeDep(dep Cell) {
	first := true
	unsub := dep.Subscribe(func(Change) {
		if first {
			// dep.Subscribe replays an init record synchronously during
			// registration, before NewComputed has a chance to record
			// the dependency's own unsubscribe; ignore that first replay.
			first = false
			return
		}
		c.recompute()
	})
	c.unsubscribes = append(c.unsubscribes, unsub)
}

func (c *Computed) recompute() {
	// Recomputation reads the same cells as construction did, but we do
	// not need to re-open a tracker frame: the dependency set is frozen,
	// untracked reads of the very same cells are semantically identical
	// to tracked ones here since no new subscriptions are created.
	c.value = Untracked(c.fn)
	c.bus.emit(Change{Type: ChangeValue, Value: c.value})
}

// Current returns the memoized last value, tracking this computed as a
// dependency of any surrounding computation.
func (c *Computed) Current() any {
	track(c)
	return c.value
}

// Set is present only to satisfy the Cell interface; computed cells are
// read-only and Set always panics.
func (c *Computed) Set(any) {
	panic("reactive: Computed is read-only")
}

// Subscribe registers listener, immediately replaying the current value
// as a ChangeInit record.
func (c *Computed) Subscribe(listener func(Change)) (unsubscribe func()) {
	return c.bus.subscribe(listener, Change{Type: ChangeInit, Value: c.value})
}

func (c *Computed) Kind() Kind { return KindScalar }

func (c *Computed) Freeze() { c.bus.freeze() }

func (c *Computed) Unfreeze() { c.bus.unfreeze(c.value) }

// Close releases every dependency subscription. Computeds are typically
// owned by a room for its whole lifetime, but statesync detaches a
// nested instance's computeds when its owning entry is removed.
func (c *Computed) Close() {
	for _, unsub := range c.unsubscribes {
		unsub()
	}
	c.unsubscribes = nil
}
