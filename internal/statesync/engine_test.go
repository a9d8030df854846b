package statesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odin-rooms/roomsync/internal/reactive"
)

// Counter is scenario 1's fixture: a single synced scalar field.
type Counter struct {
	Count *reactive.Scalar
}

func newCounter() *Counter {
	return &Counter{Count: reactive.NewScalar(0, nil)}
}

func init() {
	DefineClass[Counter]().Sync("Count")
}

func TestAttachEmitsInitialAggregateBatch(t *testing.T) {
	inst := newCounter()
	var batches []*OrderedMap
	h := Attach(inst, func(b *OrderedMap) { batches = append(batches, b) }, nil)
	defer h.Detach()

	require.Len(t, batches, 1)
	v, ok := batches[0].Get("Count")
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestScalarSetProducesNextBatch(t *testing.T) {
	inst := newCounter()
	var batches []*OrderedMap
	h := Attach(inst, func(b *OrderedMap) { batches = append(batches, b) }, nil)
	defer h.Detach()

	inst.Count.Set(1)
	require.Len(t, batches, 2)
	v, _ := batches[1].Get("Count")
	assert.Equal(t, 1, v)
}

// Inner/Outer are scenario 2's fixture: nested-class propagation through
// an object cell.
type Inner struct {
	Value *reactive.Scalar
}

type Outer struct {
	Nested *reactive.Object
}

func init() {
	DefineClass[Inner]().Sync("Value")
	DefineClass[Outer]().Sync("Nested", WithClassType(func(key string) any {
		return &Inner{Value: reactive.NewScalar(0, nil)}
	}))
}

func TestNestedClassPropagationViaObjectCell(t *testing.T) {
	inst := &Outer{Nested: reactive.NewObject(nil)}
	var syncBatches []*OrderedMap
	var persistBatches []*OrderedMap
	h := Attach(inst,
		func(b *OrderedMap) { syncBatches = append(syncBatches, b) },
		func(b *OrderedMap) { persistBatches = append(persistBatches, b) },
	)
	defer h.Detach()

	require.Len(t, syncBatches, 1)
	v, _ := syncBatches[0].Get("Nested")
	assert.Equal(t, map[string]any{}, v)

	inner := &Inner{Value: reactive.NewScalar(10, nil)}
	inst.Nested.SetKey("id", inner)

	require.Len(t, syncBatches, 2)
	v, ok := syncBatches[1].Get("Nested.id.Value")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	require.Len(t, persistBatches, 1) // the initial attach had nothing to persist (Nested started empty)
	v, ok = persistBatches[0].Get("Nested.id")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

// Items is scenario 3's fixture: array sync with delete.
type Items struct {
	Items *reactive.Array
}

func init() {
	DefineClass[Items]().Sync("Items")
}

func TestArraySyncWithDelete(t *testing.T) {
	inst := &Items{Items: reactive.NewArray([]any{1, 2})}
	var batches []*OrderedMap
	h := Attach(inst, func(b *OrderedMap) { batches = append(batches, b) }, nil)
	defer h.Detach()

	require.Len(t, batches, 1)
	v, _ := batches[0].Get("Items")
	assert.Equal(t, map[string]any{"0": 1, "1": 2}, v)

	inst.Items.Shift()
	require.Len(t, batches, 2)
	v, ok := batches[1].Get("Items.0")
	require.True(t, ok)
	assert.Equal(t, deleteSentinel, v)
}

// Transformed is scenario 6's fixture.
type Transformed struct {
	Value *reactive.Scalar
}

func init() {
	DefineClass[Transformed]().Sync("Value", WithTransform(func(v any) any {
		s, ok := v.(string)
		if !ok {
			return v
		}
		var n int
		for _, r := range s {
			n = n*10 + int(r-'0')
		}
		return n
	}))
}

func TestTransformAppliesToOutboundValue(t *testing.T) {
	inst := &Transformed{Value: reactive.NewScalar("1", nil)}
	var batches []*OrderedMap
	h := Attach(inst, func(b *OrderedMap) { batches = append(batches, b) }, nil)
	defer h.Detach()

	v, _ := batches[0].Get("Value")
	assert.Equal(t, 1, v)

	inst.Value.Set("42")
	require.Len(t, batches, 2)
	v, _ = batches[1].Get("Value")
	assert.Equal(t, 42, v)
}

func TestPersistFalseFieldNeverContributesToPersist(t *testing.T) {
	type NoPersist struct {
		Ephemeral *reactive.Scalar
	}
	DefineClass[NoPersist]().Sync("Ephemeral", WithPersist(false))

	inst := &NoPersist{Ephemeral: reactive.NewScalar(1, nil)}
	var persistCalls int
	h := Attach(inst, func(*OrderedMap) {}, func(*OrderedMap) { persistCalls++ })
	defer h.Detach()

	inst.Ephemeral.Set(2)
	assert.Equal(t, 0, persistCalls)
}

// cycleThing is a class-typed instance annotated to hold a reference to
// another instance of the same type, so it can be arranged into a cycle.
type cycleThing struct {
	Label *reactive.Scalar
	Peer  *reactive.Object
}

func init() {
	DefineClass[cycleThing]().Sync("Label").Sync("Peer", WithClassType(func(key string) any {
		return &cycleThing{Label: reactive.NewScalar("", nil), Peer: reactive.NewObject(nil)}
	}))
}

func TestAttachRefusesToReenterACyclicInstance(t *testing.T) {
	a := &cycleThing{Label: reactive.NewScalar("a", nil), Peer: reactive.NewObject(nil)}
	b := &cycleThing{Label: reactive.NewScalar("b", nil), Peer: reactive.NewObject(nil)}
	a.Peer.SetKey("b", b)
	b.Peer.SetKey("a", a) // cycle: a -> b -> a

	var batches []*OrderedMap
	var h *Handle
	assert.NotPanics(t, func() {
		h = Attach(a, func(bt *OrderedMap) { batches = append(batches, bt) }, nil)
	})
	defer h.Detach()

	require.Len(t, batches, 1)
	v, ok := batches[0].Get("Peer.b.Label")
	require.True(t, ok, "one real hop into the cycle is still attached and synced")
	assert.Equal(t, "b", v)

	_, ok = batches[0].Get("Peer.b.Peer.a.Label")
	assert.False(t, ok, "the hop back to 'a' is cut, so its fields never get their own subscription")

	peerBPeer, ok := batches[0].Get("Peer.b.Peer")
	require.True(t, ok, "the cut container still emits its empty shape")
	assert.Equal(t, map[string]any{}, peerBPeer)
}
