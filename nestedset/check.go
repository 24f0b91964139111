package nestedset

import (
	"context"
	"fmt"
	"sort"
)

type Violation struct {
	Node    int64
	Problem string
}

func (v Violation) String() string {
	return fmt.Sprintf("node %d: %s", v.Node, v.Problem)
}

// Report is the result of checking the nested-set invariants of a table.
type Report struct {
	Nodes      int
	Roots      int
	Violations []Violation
}

func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

func (r *Report) add(id int64, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Node: id, Problem: fmt.Sprintf(format, args...)})
}

// Check reads the whole table and verifies its invariants.
func (e *Engine) Check(ctx context.Context) (*Report, error) {
	nodes, err := e.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return CheckNodes(nodes), nil
}

// CheckNodes verifies that intervals are well formed and tightly packed,
// that they nest without partial overlap, and that parent and depth agree
// with the nesting.
func CheckNodes(nodes []*Node) *Report {
	r := &Report{Nodes: len(nodes)}

	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Left < sorted[j].Left })

	seen := make(map[int64]int64, 2*len(nodes))
	for _, n := range sorted {
		if n.Left >= n.Right {
			r.add(n.ID, "left %d is not below right %d", n.Left, n.Right)
		}
		for _, v := range []int64{n.Left, n.Right} {
			if other, ok := seen[v]; ok {
				r.add(n.ID, "bound %d already used by node %d", v, other)
			}
			seen[v] = n.ID
		}
	}
	for v := int64(1); v <= int64(2*len(nodes)); v++ {
		if _, ok := seen[v]; !ok {
			r.add(0, "bound %d is unused", v)
		}
	}

	var stack []*Node
	for _, n := range sorted {
		for len(stack) > 0 && stack[len(stack)-1].Right < n.Left {
			stack = stack[:len(stack)-1]
		}

		var nearest *Node
		if len(stack) > 0 {
			nearest = stack[len(stack)-1]
			if n.Right > nearest.Right {
				r.add(n.ID, "interval [%d,%d] partially overlaps node %d [%d,%d]", n.Left, n.Right, nearest.ID, nearest.Left, nearest.Right)
			}
		} else {
			r.Roots++
		}

		switch {
		case nearest == nil && n.ParentID != nil:
			r.add(n.ID, "has parent %d but no enclosing interval", *n.ParentID)
		case nearest != nil && (n.ParentID == nil || *n.ParentID != nearest.ID):
			r.add(n.ID, "parent should be %d", nearest.ID)
		}
		if n.Depth != int64(len(stack)) {
			r.add(n.ID, "depth %d should be %d", n.Depth, len(stack))
		}

		stack = append(stack, n)
	}
	return r
}
