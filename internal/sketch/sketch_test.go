package sketch

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsAndDedups(t *testing.T) {
	tmpl := NewTemplate(31, 1)
	s := New("test", tmpl, []uint64{30, 10, 20, 10, 30})

	assert.Equal(t, []uint64{10, 20, 30}, s.Mins())
	assert.Equal(t, 3, s.Cardinality())
}

func TestNewClipsToMaxHash(t *testing.T) {
	tmpl := NewTemplate(31, 1000)
	maxHash := tmpl.MaxHash()

	s := New("test", tmpl, []uint64{1, maxHash, maxHash + 1, math.MaxUint64})
	assert.Equal(t, []uint64{1, maxHash}, s.Mins())
}

func TestMaxHashForScaled(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), MaxHashForScaled(0))
	assert.Equal(t, uint64(math.MaxUint64), MaxHashForScaled(1))
	assert.Equal(t, uint64(math.MaxUint64)/1000, MaxHashForScaled(1000))

	// Round trip back to the scaled factor.
	assert.Equal(t, uint64(1000), ScaledForMaxHash(MaxHashForScaled(1000)))
	assert.Equal(t, uint64(1), ScaledForMaxHash(math.MaxUint64))
}

func TestCompatible(t *testing.T) {
	tmpl := NewTemplate(31, 1000)
	s := New("test", tmpl, []uint64{1, 2, 3})

	assert.True(t, s.Compatible(tmpl))
	assert.False(t, s.Compatible(NewTemplate(21, 1000)))
	assert.False(t, s.Compatible(NewTemplate(31, 2000)))
}

func TestIntersection(t *testing.T) {
	tmpl := NewTemplate(31, 1)
	a := New("a", tmpl, []uint64{1, 2, 3, 5})
	b := New("b", tmpl, []uint64{2, 3, 4})

	shared, n, err := a.Intersection(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, []uint64{2, 3}, shared)

	// Symmetric.
	shared, n, err = b.Intersection(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, []uint64{2, 3}, shared)
}

func TestIntersectionDisjoint(t *testing.T) {
	tmpl := NewTemplate(31, 1)
	a := New("a", tmpl, []uint64{1, 2})
	b := New("b", tmpl, []uint64{3, 4})

	shared, n, err := a.Intersection(b)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, shared)
}

func TestIntersectionIncompatible(t *testing.T) {
	a := New("a", NewTemplate(31, 1), []uint64{1})
	b := New("b", NewTemplate(21, 1), []uint64{1})

	_, _, err := a.Intersection(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatible))
}

func TestMerge(t *testing.T) {
	tmpl := NewTemplate(31, 1)
	a := New("a", tmpl, []uint64{1, 3, 5})
	b := New("b", tmpl, []uint64{2, 3, 6})

	require.NoError(t, a.Merge(b))
	assert.Equal(t, []uint64{1, 2, 3, 5, 6}, a.Mins())
	// b is untouched.
	assert.Equal(t, []uint64{2, 3, 6}, b.Mins())
}

func TestMergeIncompatible(t *testing.T) {
	a := New("a", NewTemplate(31, 1), []uint64{1})
	b := New("b", NewTemplate(31, 1000), []uint64{1})

	err := a.Merge(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatible))
}

func TestClone(t *testing.T) {
	tmpl := NewTemplate(31, 1)
	a := New("a", tmpl, []uint64{1, 2})
	c := a.Clone()

	require.NoError(t, c.Merge(New("b", tmpl, []uint64{3})))
	assert.Equal(t, []uint64{1, 2}, a.Mins())
	assert.Equal(t, []uint64{1, 2, 3}, c.Mins())
}

func TestContains(t *testing.T) {
	s := New("a", NewTemplate(31, 1), []uint64{10, 20, 30})

	assert.True(t, s.Contains(20))
	assert.False(t, s.Contains(15))
	assert.False(t, s.Contains(40))
}

func TestSelect(t *testing.T) {
	t31 := NewTemplate(31, 1000)
	t21 := NewTemplate(21, 1000)
	sketches := []*Sketch{New("a", t21, nil), New("b", t31, nil)}

	picked := Select(sketches, t31)
	require.NotNil(t, picked)
	assert.Equal(t, "b", picked.Name())

	assert.Nil(t, Select(sketches, NewTemplate(51, 1000)))
}
