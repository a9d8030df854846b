package statesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odin-rooms/roomsync/internal/reactive"
)

type loadCounter struct {
	Count *reactive.Scalar
}

func init() {
	DefineClass[loadCounter]().Sync("Count")
}

func TestLoadPathFormSetsScalar(t *testing.T) {
	inst := &loadCounter{Count: reactive.NewScalar(0, nil)}
	err := Load(inst, map[string]any{"Count": 5}, false)
	require.NoError(t, err)
	assert.Equal(t, 5, inst.Count.Current())
}

func TestLoadUnknownPathIsIgnored(t *testing.T) {
	inst := &loadCounter{Count: reactive.NewScalar(0, nil)}
	err := Load(inst, map[string]any{"Nope": 5}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, inst.Count.Current())
}

type loadInner struct {
	Value *reactive.Scalar
}

type loadOuter struct {
	Nested *reactive.Object
}

func init() {
	DefineClass[loadInner]().Sync("Value")
	DefineClass[loadOuter]().Sync("Nested", WithClassType(func(key string) any {
		return &loadInner{Value: reactive.NewScalar(0, nil)}
	}))
}

func TestLoadConstructsClassTypedEntryOnDemand(t *testing.T) {
	inst := &loadOuter{Nested: reactive.NewObject(nil)}
	err := Load(inst, map[string]any{"Nested.id.Value": 7}, false)
	require.NoError(t, err)

	child, ok := inst.Nested.Get("id")
	require.True(t, ok)
	inner, ok := child.(*loadInner)
	require.True(t, ok)
	assert.Equal(t, 7, inner.Value.Current())
}

func TestLoadDeleteSentinelRemovesObjectKey(t *testing.T) {
	inst := &loadOuter{Nested: reactive.NewObject(nil)}
	inner := &loadInner{Value: reactive.NewScalar(1, nil)}
	inst.Nested.SetKey("id", inner)

	err := Load(inst, map[string]any{"Nested.id": deleteSentinel}, false)
	require.NoError(t, err)

	_, ok := inst.Nested.Get("id")
	assert.False(t, ok)
}

type loadItems struct {
	Items *reactive.Array
}

func init() {
	DefineClass[loadItems]().Sync("Items")
}

func TestLoadArrayIndexAssignAndDelete(t *testing.T) {
	inst := &loadItems{Items: reactive.NewArray([]any{1, 2, 3})}

	err := Load(inst, map[string]any{"Items.1": 99}, false)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 99, 3}, inst.Items.Values())

	err = Load(inst, map[string]any{"Items.0": deleteSentinel}, false)
	require.NoError(t, err)
	assert.Equal(t, []any{99, 3}, inst.Items.Values())
}

func TestLoadOrderedAppliesLatestValueOfReSetKey(t *testing.T) {
	inst := &loadCounter{Count: reactive.NewScalar(0, nil)}
	payload := NewOrderedMap()
	payload.Set("Count", 1)
	payload.Set("Count", 2) // re-Set of same key: last value wins, position unchanged

	err := LoadOrdered(inst, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, inst.Count.Current())
}

func TestLoadJSONPreservesSourceKeyOrderAndAppliesEntries(t *testing.T) {
	inst := &loadOuter{Nested: reactive.NewObject(nil)}
	raw := []byte(`{"Nested.a.Value":1,"Nested.b.Value":2}`)

	err := LoadJSON(inst, raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, inst.Nested.Keys(), "entries are created in the payload's key order")

	a, ok := inst.Nested.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, a.(*loadInner).Value.Current())

	b, ok := inst.Nested.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, b.(*loadInner).Value.Current())
}

func TestLoadObjectFormAppliesOnlyAnnotatedFields(t *testing.T) {
	inst := &loadCounter{Count: reactive.NewScalar(0, nil)}
	err := Load(inst, map[string]any{"Count": 3, "Ignored": "whatever"}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, inst.Count.Current())
}

func TestLoadObjectFormOnObjectCellAppliesSubPayloadPerKey(t *testing.T) {
	inst := &loadOuter{Nested: reactive.NewObject(nil)}
	err := Load(inst, map[string]any{
		"Nested": map[string]any{
			"id": map[string]any{"Value": 11},
		},
	}, true)
	require.NoError(t, err)

	child, ok := inst.Nested.Get("id")
	require.True(t, ok)
	assert.Equal(t, 11, child.(*loadInner).Value.Current())
}

func TestLoadObjectFormOnArrayCellReplacesWholeArray(t *testing.T) {
	inst := &loadItems{Items: reactive.NewArray([]any{1, 2})}
	err := Load(inst, map[string]any{"Items": []any{9, 8, 7}}, true)
	require.NoError(t, err)
	assert.Equal(t, []any{9, 8, 7}, inst.Items.Values())
}
