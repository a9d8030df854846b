package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarSetEmitsValue(t *testing.T) {
	s := NewScalar(1, nil)
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	s.Set(2)
	s.Set(2) // no-op, same value

	require.Len(t, got, 2)
	assert.Equal(t, ChangeInit, got[0].Type)
	assert.Equal(t, 1, got[0].Value)
	assert.Equal(t, ChangeValue, got[1].Type)
	assert.Equal(t, 2, got[1].Value)
}

func TestScalarLateSubscriberSeesCurrent(t *testing.T) {
	s := NewScalar("a", nil)
	s.Set("b")

	var got Change
	s.Subscribe(func(c Change) { got = c })

	assert.Equal(t, ChangeInit, got.Type)
	assert.Equal(t, "b", got.Value)
}

func TestScalarFreezeSuppressesThenReplaysInit(t *testing.T) {
	s := NewScalar(0, nil)
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	s.Freeze()
	s.Set(5)
	s.Set(6)
	require.Len(t, got, 1) // only the initial replay

	s.Unfreeze()
	require.Len(t, got, 2)
	assert.Equal(t, ChangeInit, got[1].Type)
	assert.Equal(t, 6, got[1].Value)
}

func TestUntrackedDoesNotAddDependency(t *testing.T) {
	s := NewScalar(1, nil)

	var sawDep bool
	Untracked(func() any {
		sawDep = currentTracker() != nil
		return nil
	})
	assert.False(t, sawDep)

	c := NewComputed(func() any {
		return Untracked(func() any { return s.Current() })
	})
	// c has no real dependencies, since the read happened untracked.
	s.Set(99)
	assert.Equal(t, 1, c.Current())
}
