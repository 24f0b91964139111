package nestedset

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// TreeNode is a node of a materialized hierarchy. Children is nil for leaves.
type TreeNode struct {
	*Node
	Children []*TreeNode
}

// BuildHierarchy nests a preorder (left-ordered) sequence of nodes, as
// returned by the engine's read operations, into a forest. The input must
// already be in preorder; other orderings produce arbitrary nesting.
func BuildHierarchy(nodes []*Node) []*TreeNode {
	var forest []*TreeNode
	pos := 0
	for pos < len(nodes) {
		// a new run starts whenever the previous run of siblings ends
		forest = append(forest, buildLevel(nodes, &pos, nodes[pos].ParentID)...)
	}
	return forest
}

// buildLevel consumes consecutive nodes whose parent is parent, recursing
// into the children of each non-leaf. pos is the shared cursor into nodes.
func buildLevel(nodes []*Node, pos *int, parent *int64) []*TreeNode {
	var level []*TreeNode
	for *pos < len(nodes) && sameParent(nodes[*pos].ParentID, parent) {
		n := nodes[*pos]
		*pos++

		t := &TreeNode{Node: n}
		if !n.IsLeaf() {
			t.Children = buildLevel(nodes, pos, Int64(n.ID))
		}
		level = append(level, t)
	}
	return level
}

// Flatten walks a forest in preorder; it inverts BuildHierarchy.
func Flatten(forest []*TreeNode) []*Node {
	var out []*Node
	var walk func(ts []*TreeNode)
	walk = func(ts []*TreeNode) {
		for _, t := range ts {
			out = append(out, t.Node)
			walk(t.Children)
		}
	}
	walk(forest)
	return out
}

// Render draws a forest as an indented text tree. label defaults to the
// node's id and bounds.
func Render(forest []*TreeNode, label func(*Node) string) string {
	if label == nil {
		label = func(n *Node) string {
			return fmt.Sprintf("%d [%d,%d]", n.ID, n.Left, n.Right)
		}
	}

	tree := treeprint.New()
	var add func(branch treeprint.Tree, ts []*TreeNode)
	add = func(branch treeprint.Tree, ts []*TreeNode) {
		for _, t := range ts {
			if len(t.Children) == 0 {
				branch.AddNode(label(t.Node))
				continue
			}
			add(branch.AddBranch(label(t.Node)), t.Children)
		}
	}
	add(tree, forest)
	return tree.String()
}
