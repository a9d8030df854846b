package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*NATSKV)(nil)
)

func TestMemoryGetMissingKeyReturnsNotOK(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Get(context.Background(), "Tokens.ODIN")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPutThenGetRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "Tokens.ODIN", map[string]any{"Price": 1.5}))

	v, ok, err := m.Get(ctx, "Tokens.ODIN")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Price": 1.5}, v)
}

func TestMemoryPutOverwritesExistingValue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", 1))
	require.NoError(t, m.Put(ctx, "k", 2))

	v, ok, _ := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMemoryDeleteRemovesKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", 1))
	require.NoError(t, m.Delete(ctx, "k"))

	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryDeleteOfAbsentKeyIsNotAnError(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Delete(context.Background(), "never-written"))
}

func TestMemoryListReturnsEveryStoredKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "Tokens.ODIN", 1))
	require.NoError(t, m.Put(ctx, "Tokens.SATS", 2))

	keys, err := m.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Tokens.ODIN", "Tokens.SATS"}, keys)
}
