package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetWalksNestedAndArraySegments(t *testing.T) {
	root := map[string]any{
		"a": map[string]any{
			"b": []any{10, 20, map[string]any{"c": "deep"}},
		},
	}

	v, ok := Get(root, "a.b.0")
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = Get(root, "a.b.2.c")
	assert.True(t, ok)
	assert.Equal(t, "deep", v)

	_, ok = Get(root, "a.missing.x")
	assert.False(t, ok)

	_, ok = Get(root, "a.b.99")
	assert.False(t, ok)
}

func TestGetRefusesForbiddenSegments(t *testing.T) {
	root := map[string]any{"__proto__": map[string]any{"x": 1}}
	_, ok := Get(root, "__proto__.x")
	assert.False(t, ok)
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	root := Set(nil, "a.b.c", 5)
	v, ok := Get(root, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestSetNumericSegmentProducesStringKey(t *testing.T) {
	root := Set(nil, "items.0", "x")
	inner, ok := root["items"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "x", inner["0"])
}

func TestSetRefusesForbiddenSegments(t *testing.T) {
	root := Set(nil, "constructor.x", 1)
	_, ok := root["constructor"]
	assert.False(t, ok)
}

func TestRemovePrunesLeaf(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1, "c": 2}}
	Remove(root, "a.b")

	inner := root["a"].(map[string]any)
	_, hasB := inner["b"]
	assert.False(t, hasB)
	assert.Equal(t, 2, inner["c"])
}

func TestRemoveMissingSegmentIsNoop(t *testing.T) {
	root := map[string]any{"a": 1}
	Remove(root, "a.b.c")
	assert.Equal(t, 1, root["a"])
}
