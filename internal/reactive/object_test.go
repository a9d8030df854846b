package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSetKeyAddUpdateDelete(t *testing.T) {
	o := NewObject(nil)
	var got []Change
	o.Subscribe(func(c Change) { got = append(got, c) })

	o.SetKey("a", 1)
	o.SetKey("a", 2)
	o.DeleteKey("a")
	o.DeleteKey("missing") // no-op

	require.Len(t, got, 4)
	assert.Equal(t, ChangeInit, got[0].Type)
	assert.Equal(t, ChangeAdd, got[1].Type)
	assert.Equal(t, "a", got[1].Key)
	assert.Equal(t, ChangeUpdate, got[2].Type)
	assert.Equal(t, 2, got[2].Value)
	assert.Equal(t, ChangeRemove, got[3].Type)
	assert.Equal(t, "a", got[3].Key)
}

func TestObjectSetEmitsReset(t *testing.T) {
	o := NewObject(map[string]any{"a": 1})
	var got []Change
	o.Subscribe(func(c Change) { got = append(got, c) })

	o.Set(map[string]any{"b": 2})
	require.Len(t, got, 2)
	assert.Equal(t, ChangeReset, got[1].Type)
	assert.Equal(t, map[string]any{"b": 2}, got[1].Value)

	v, ok := o.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
