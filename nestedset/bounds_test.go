package nestedset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nb(id, left, right int64) *Node {
	return &Node{ID: id, Left: left, Right: right}
}

func TestBoundaries(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// R(1,6) > A(2,3), B(4,5)
	a := nb(2, 2, 3)
	b := nb(3, 4, 5)

	tests := []struct {
		name           string
		node, target   *Node
		pos            Position
		primary, other int64
		sorted         Boundaries
	}{
		{"child of later sibling", a, b, PositionChild, 4, 4, Boundaries{2, 3, 4, 4}},
		{"right of later sibling", a, b, PositionRight, 5, 4, Boundaries{2, 3, 4, 5}},
		{"child of earlier sibling", b, a, PositionChild, 3, 3, Boundaries{3, 3, 4, 5}},
		{"left of earlier sibling", b, a, PositionLeft, 2, 3, Boundaries{2, 3, 4, 5}},
	}
	for _, tc := range tests {
		primary, err := PrimaryBoundary(tc.node, tc.target, tc.pos)
		require.NoError(err, tc.name)
		assert.Equal(tc.primary, primary, tc.name)

		other, err := OtherBoundary(tc.node, tc.target, tc.pos)
		require.NoError(err, tc.name)
		assert.Equal(tc.other, other, tc.name)

		sorted, err := SortedBoundaries(tc.node, tc.target, tc.pos)
		require.NoError(err, tc.name)
		assert.Equal(tc.sorted, sorted, tc.name)
	}
}

func TestPrimaryBoundaryNoop(t *testing.T) {
	assert := assert.New(t)

	a := nb(2, 2, 3)
	b := nb(3, 4, 5)

	// already right of a
	p, err := PrimaryBoundary(b, a, PositionRight)
	assert.NoError(err)
	assert.Equal(b.Left, p)

	// already left of b
	p, err = PrimaryBoundary(a, b, PositionLeft)
	assert.NoError(err)
	assert.Equal(a.Right, p)
}

func TestBoundaryErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := PrimaryBoundary(&Node{ID: 1}, nb(2, 1, 2), PositionChild)
	assert.ErrorIs(err, ErrInvalidState)

	_, err = SortedBoundaries(nb(1, 1, 2), nb(2, 3, 4), Position("above"))
	assert.ErrorIs(err, ErrInvalidArgument)

	_, err = ParsePosition("below")
	assert.ErrorIs(err, ErrInvalidArgument)

	p, err := ParsePosition("left")
	assert.NoError(err)
	assert.Equal(PositionLeft, p)
}

func TestShiftIsBijection(t *testing.T) {
	b := Boundaries{A: 3, B: 6, C: 7, D: 12}
	seen := make(map[int64]bool)
	for v := b.A; v <= b.D; v++ {
		s := b.Shift(v)
		assert.True(t, b.Contains(s), "value %d shifted out of range to %d", v, s)
		assert.False(t, seen[s], "value %d collides at %d", v, s)
		seen[s] = true
	}
	assert.Equal(t, int64(1), b.Shift(1))
	assert.Equal(t, int64(20), b.Shift(20))
}
