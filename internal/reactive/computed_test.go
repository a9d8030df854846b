package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputedTracksDeclaredDependencies(t *testing.T) {
	a := NewScalar(1, nil)
	b := NewScalar(10, nil)

	c := NewComputed(func() any {
		return a.Current().(int) + b.Current().(int)
	})
	assert.Equal(t, 11, c.Current())

	a.Set(2)
	assert.Equal(t, 12, c.Current())

	b.Set(20)
	assert.Equal(t, 22, c.Current())
}

func TestComputedDoesNotReactToUntrackedCell(t *testing.T) {
	tracked := NewScalar(1, nil)
	untracked := NewScalar(100, nil)

	c := NewComputed(func() any {
		return tracked.Current().(int)
	})

	untracked.Set(999) // not a dependency, must not affect c
	assert.Equal(t, 1, c.Current())

	tracked.Set(2)
	assert.Equal(t, 2, c.Current())
}

func TestComputedIsReadOnly(t *testing.T) {
	c := NewComputed(func() any { return 1 })
	assert.Panics(t, func() { c.Set(2) })
}
