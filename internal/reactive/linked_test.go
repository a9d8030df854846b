package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkedSignalOverrideAndReset(t *testing.T) {
	s := NewScalar(0, nil)
	l := NewLinkedComputed(func() any {
		return s.Current().(int) * 2
	}, nil)

	assert.Equal(t, 0, l.Current())

	l.Set(100)
	assert.Equal(t, 100, l.Current())

	s.Set(5)
	assert.Equal(t, 10, l.Current())
}

func TestLinkedSignalSourceShapeWithPrevious(t *testing.T) {
	s := NewScalar(1, nil)
	var sawPrev []bool
	l := NewLinkedSource(
		func() any { return s.Current() },
		func(current any, previous *LinkedPrevious) any {
			sawPrev = append(sawPrev, previous != nil)
			if previous == nil {
				return current
			}
			return current.(int) + previous.Value.(int)
		},
		nil,
	)
	assert.Equal(t, 1, l.Current())

	s.Set(2)
	assert.Equal(t, 3, l.Current()) // 2 + previous value (1)

	assert.Equal(t, []bool{false, true}, sawPrev)
}

func TestLinkedSignalOverridePersistsUntilDependencyChanges(t *testing.T) {
	s := NewScalar("a", nil)
	l := NewLinkedComputed(func() any { return s.Current() }, nil)

	l.Set("override")
	// untracked reads of s must not drop the override
	Untracked(func() any { return s.Current() })
	assert.Equal(t, "override", l.Current())

	s.Set("b")
	assert.Equal(t, "b", l.Current())
}

func TestLinkedSignalWithNoDependenciesRecomputesOnEveryRead(t *testing.T) {
	n := 0
	l := NewLinkedComputed(func() any {
		n++
		return n
	}, nil)

	// construction already evaluated once (n == 1); each read recomputes
	assert.Equal(t, 2, l.Current())
	assert.Equal(t, 3, l.Current())
	assert.Equal(t, 4, l.Current())
}

func TestLinkedSignalWithNoDependenciesOverridePersistsUntilReplaced(t *testing.T) {
	n := 0
	l := NewLinkedComputed(func() any {
		n++
		return n
	}, nil)

	l.Current() // n == 2: one evaluation at construction, one on this read
	l.Set(100)
	assert.Equal(t, 100, l.Current(), "an active override short-circuits the recompute, even with no dependencies")
	assert.Equal(t, 100, l.Current())
}
