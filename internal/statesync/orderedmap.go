package statesync

import (
	"bytes"
	"encoding/json"
)

// OrderedMap is an insertion-order-preserving string-keyed map: the Go
// stand-in for a JS `Map`, used for every pending sync/persist batch and
// for the batches finally delivered to onSync/onPersist.
// Re-Set of an existing key updates its value in place without moving its
// position, matching JS Map.set semantics.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set inserts or updates key. First-seen position is preserved.
func (m *OrderedMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get reads key.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len reports the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (m *OrderedMap) Each(fn func(key string, value any)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Clone returns an independent copy with the same entries and order.
func (m *OrderedMap) Clone() *OrderedMap {
	out := NewOrderedMap()
	out.keys = append([]string(nil), m.keys...)
	out.values = make(map[string]any, len(m.values))
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Merge folds other's entries into a clone of m, in other's insertion
// order, using Set semantics throughout: a key already present keeps its
// original position but takes other's value, and a new key is appended.
// Used to fold successive delta batches together (e.g. inside a
// internal/roomkit.Throttle cooldown window) instead of letting a later
// batch silently replace an earlier one.
func (m *OrderedMap) Merge(other *OrderedMap) *OrderedMap {
	out := m.Clone()
	other.Each(func(k string, v any) {
		out.Set(k, v)
	})
	return out
}

// Clear empties the map in place, as flush does after a snapshot is
// handed to the caller's onSync/onPersist.
func (m *OrderedMap) Clear() {
	m.keys = m.keys[:0]
	for k := range m.values {
		delete(m.values, k)
	}
}

// ToMap returns an unordered copy, for callers that only need content.
func (m *OrderedMap) ToMap() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map as a JSON object with keys in insertion
// order — map[string]any would not preserve it, so this hand-rolls the
// object body the way a streaming encoder would.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
