package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet(1, 2, 3)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contain(1, 2))
	assert.False(t, s.Contain(1, 4))

	s.Insert(4)
	s.Remove(1)
	assert.ElementsMatch(t, []int{2, 3, 4}, s.Collect())

	other := NewSet(3, 4, 5)
	assert.ElementsMatch(t, []int{3, 4}, s.Intersection(other).Collect())
	assert.ElementsMatch(t, []int{2, 3, 4, 5}, s.Union(other).Collect())
	assert.ElementsMatch(t, []int{2}, s.Complement(other).Collect())

	c := s.Clone()
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, s.Len())

	n := 0
	s.Range(func(int) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}
