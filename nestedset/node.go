package nestedset

import "fmt"

// Node is one row of a table indexed as a nested set. Only the tree columns
// are interpreted; Attrs carries any other payload columns untouched.
type Node struct {
	ID       int64
	ParentID *int64
	Left     int64
	Right    int64
	Depth    int64

	Attrs map[string]any

	// set by OnBeforeSave when ParentID was changed directly
	moveToNewParent bool
	newParent       *int64
}

func (n *Node) String() string {
	return fmt.Sprintf("node(%d [%d,%d] d=%d)", n.ID, n.Left, n.Right, n.Depth)
}

// HasBounds reports whether the node has been assigned an interval.
func (n *Node) HasBounds() bool {
	return n != nil && n.Left != 0 && n.Right != 0
}

func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

func (n *Node) IsChild() bool {
	return !n.IsRoot()
}

func (n *Node) IsLeaf() bool {
	return n.HasBounds() && n.Right-n.Left == 1
}

// Width is the number of integers the subtree rooted at n occupies.
func (n *Node) Width() int64 {
	return n.Right - n.Left + 1
}

// IsDescendantOf reports strict containment of n's interval in other's.
func (n *Node) IsDescendantOf(other *Node) bool {
	return n.Left > other.Left && n.Left < other.Right
}

func (n *Node) IsSelfOrDescendantOf(other *Node) bool {
	return n.Left >= other.Left && n.Left < other.Right
}

func (n *Node) IsAncestorOf(other *Node) bool {
	return n.Left < other.Left && other.Left < n.Right
}

func (n *Node) IsSelfOrAncestorOf(other *Node) bool {
	return n.Left <= other.Left && other.Left < n.Right
}

// Equals compares identity, not bounds.
func (n *Node) Equals(other *Node) bool {
	return n != nil && other != nil && n.ID == other.ID
}

// Clone returns a copy safe to hand out from a store.
func (n *Node) Clone() *Node {
	out := *n
	if n.ParentID != nil {
		p := *n.ParentID
		out.ParentID = &p
	}
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	out.moveToNewParent = false
	out.newParent = nil
	return &out
}

// copyTree overwrites the tree columns of n with those of src.
func (n *Node) copyTree(src *Node) {
	n.ParentID = src.ParentID
	n.Left = src.Left
	n.Right = src.Right
	n.Depth = src.Depth
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Int64 is a helper for building ParentID values.
func Int64(v int64) *int64 {
	return &v
}
