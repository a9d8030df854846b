package reactive

// Array is an ordered-sequence cell. JS transparent-proxy mutation
// (`push`/`pop`/`shift`/`unshift`/`splice`/index assignment) is replaced
// by explicit methods, since Go has no proxy equivalent; each method
// emits exactly the change record the proxy would have produced.
type Array struct {
	bus    *bus
	values []any
}

// NewArray constructs an Array seeded with a copy of initial.
func NewArray(initial []any) *Array {
	values := make([]any, len(initial))
	copy(values, initial)
	return &Array{bus: newBus(), values: values}
}

func (a *Array) snapshot() []any {
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out
}

// Values returns a copy of the current contents, tracking this cell as a
// dependency. Current (satisfying the Cell interface) delegates to it.
func (a *Array) Values() []any {
	track(a)
	return a.snapshot()
}

// Current satisfies the Cell interface, boxing Values' result.
func (a *Array) Current() any {
	return a.Values()
}

// Len reports the current length without tracking a copy allocation
// beyond what Current would require; it still tracks the dependency,
// since length is derived from content.
func (a *Array) Len() int {
	track(a)
	return len(a.values)
}

// Set replaces the entire contents, always emitting ChangeReset even when
// the new contents are equal to the old ones. value must be []any (or
// nil, treated as empty); satisfies the Cell interface.
func (a *Array) Set(value any) {
	newValue, _ := value.([]any)
	a.values = make([]any, len(newValue))
	copy(a.values, newValue)
	a.bus.emit(Change{Type: ChangeReset, Items: a.snapshot()})
}

// Push appends items, emitting ChangeAdd at the pre-append length.
func (a *Array) Push(items ...any) {
	if len(items) == 0 {
		return
	}
	index := len(a.values)
	a.values = append(a.values, items...)
	a.bus.emit(Change{Type: ChangeAdd, Index: index, Items: append([]any(nil), items...)})
}

// Pop removes and returns the last element, emitting ChangeRemove at the
// pre-pop last index. ok is false on an empty array (no-op, no emission).
func (a *Array) Pop() (value any, ok bool) {
	n := len(a.values)
	if n == 0 {
		return nil, false
	}
	value = a.values[n-1]
	a.values = a.values[:n-1]
	a.bus.emit(Change{Type: ChangeRemove, Index: n - 1, Items: []any{value}})
	return value, true
}

// Shift removes and returns the first element, emitting ChangeRemove at
// index 0.
func (a *Array) Shift() (value any, ok bool) {
	if len(a.values) == 0 {
		return nil, false
	}
	value = a.values[0]
	a.values = a.values[1:]
	a.bus.emit(Change{Type: ChangeRemove, Index: 0, Items: []any{value}})
	return value, true
}

// Unshift prepends items, emitting ChangeAdd at index 0.
func (a *Array) Unshift(items ...any) {
	if len(items) == 0 {
		return
	}
	a.values = append(append([]any(nil), items...), a.values...)
	a.bus.emit(Change{Type: ChangeAdd, Index: 0, Items: append([]any(nil), items...)})
}

// AssignAt replaces the element at index i, emitting ChangeUpdate with
// Index=i. i must already be in range.
func (a *Array) AssignAt(i int, value any) {
	if i < 0 || i >= len(a.values) {
		return
	}
	a.values[i] = value
	a.bus.emit(Change{Type: ChangeUpdate, Index: i, Items: []any{value}})
}

// Splice removes d elements starting at i and inserts newItems in their
// place, returning the removed elements. Per :
//   - d>0, len(newItems)==0 → ChangeRemove
//   - d==0, len(newItems)>0 → ChangeAdd
//   - d==0, len(newItems)==0 → no-op, no emission
//   - otherwise → ChangeUpdate
func (a *Array) Splice(i, d int, newItems ...any) []any {
	n := len(a.values)
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	if d < 0 {
		d = 0
	}
	if i+d > n {
		d = n - i
	}

	removed := append([]any(nil), a.values[i:i+d]...)

	if d == 0 && len(newItems) == 0 {
		return removed
	}

	rebuilt := make([]any, 0, n-d+len(newItems))
	rebuilt = append(rebuilt, a.values[:i]...)
	rebuilt = append(rebuilt, newItems...)
	rebuilt = append(rebuilt, a.values[i+d:]...)
	a.values = rebuilt

	switch {
	case d > 0 && len(newItems) == 0:
		a.bus.emit(Change{Type: ChangeRemove, Index: i, Items: removed})
	case d == 0 && len(newItems) > 0:
		a.bus.emit(Change{Type: ChangeAdd, Index: i, Items: append([]any(nil), newItems...)})
	default:
		a.bus.emit(Change{Type: ChangeUpdate, Index: i, Items: append([]any(nil), newItems...)})
	}

	return removed
}

// Subscribe registers listener, immediately replaying the current
// contents as a ChangeInit record.
func (a *Array) Subscribe(listener func(Change)) (unsubscribe func()) {
	return a.bus.subscribe(listener, Change{Type: ChangeInit, Items: a.snapshot()})
}

func (a *Array) Kind() Kind { return KindArray }

func (a *Array) Freeze() { a.bus.freeze() }

// Unfreeze lifts suppression and emits a synthetic ChangeInit carrying the
// current contents in Items, the same shape Subscribe replays.
func (a *Array) Unfreeze() {
	a.bus.mu.Lock()
	a.bus.frozen = false
	a.bus.mu.Unlock()
	a.bus.emit(Change{Type: ChangeInit, Items: a.snapshot()})
}
