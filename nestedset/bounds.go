package nestedset

import (
	"fmt"
	"sort"
)

// Position places a moved node relative to its target.
type Position string

const (
	PositionChild Position = "child"
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

func (p Position) Valid() bool {
	switch p {
	case PositionChild, PositionLeft, PositionRight:
		return true
	}
	return false
}

func ParsePosition(s string) (Position, error) {
	p := Position(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: position %q must be one of child, left, right", ErrInvalidArgument, s)
	}
	return p, nil
}

// PrimaryBoundary is the edge of the target the moved node gets attached to,
// expressed in the numbering the tree will have once node's own interval is
// excised.
func PrimaryBoundary(node, target *Node, pos Position) (int64, error) {
	if !node.HasBounds() || !target.HasBounds() {
		return 0, ErrInvalidState
	}

	var b int64
	switch pos {
	case PositionChild:
		b = target.Right
	case PositionLeft:
		b = target.Left
	case PositionRight:
		b = target.Right + 1
	default:
		return 0, fmt.Errorf("%w: position %q", ErrInvalidArgument, pos)
	}

	if b > node.Right {
		b--
	}
	return b, nil
}

// OtherBoundary is the edge of node's own interval that faces the primary
// boundary.
func OtherBoundary(node, target *Node, pos Position) (int64, error) {
	primary, err := PrimaryBoundary(node, target, pos)
	if err != nil {
		return 0, err
	}
	if primary > node.Right {
		return node.Right + 1, nil
	}
	return node.Left - 1, nil
}

// Boundaries are the four sorted points a <= b <= c <= d splitting the range
// touched by a move into the blocks [a,b] and [c,d] that trade places.
type Boundaries struct {
	A, B, C, D int64
}

func SortedBoundaries(node, target *Node, pos Position) (Boundaries, error) {
	primary, err := PrimaryBoundary(node, target, pos)
	if err != nil {
		return Boundaries{}, err
	}
	other, err := OtherBoundary(node, target, pos)
	if err != nil {
		return Boundaries{}, err
	}

	v := []int64{node.Left, node.Right, primary, other}
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	return Boundaries{A: v[0], B: v[1], C: v[2], D: v[3]}, nil
}

// Contains reports whether v lies in [a,d], the range a move rewrites.
func (b Boundaries) Contains(v int64) bool {
	return v >= b.A && v <= b.D
}

// Shift maps a bound to its value after the two blocks swap. Values outside
// both blocks are returned unchanged.
func (b Boundaries) Shift(v int64) int64 {
	switch {
	case v >= b.A && v <= b.B:
		return v + (b.D - b.B)
	case v >= b.C && v <= b.D:
		return v + (b.A - b.C)
	default:
		return v
	}
}
