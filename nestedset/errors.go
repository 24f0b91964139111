package nestedset

import "errors"

// ErrInvalidState is returned when an operation needs a persisted node (one
// with bounds) and was given one that has not been saved yet.
var ErrInvalidState = errors.New("node is not persisted")

// ErrInvalidArgument is returned for a position other than child, left or right.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrUnresolvedTarget is returned when the move target does not exist, or
// when there is no sibling in the requested direction.
var ErrUnresolvedTarget = errors.New("unresolved move target")

// ErrInvalidMove is returned when a node would be moved onto itself or into
// its own subtree.
var ErrInvalidMove = errors.New("invalid move")

// ErrNodeNotFound is returned by stores when no row has the requested id.
var ErrNodeNotFound = errors.New("node not found")
