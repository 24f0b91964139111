package nestedset

import (
	"context"
	"fmt"
)

// Rebuild renumbers every tree from the parent pointers, keeping the current
// left-to-right order of siblings. Rows whose parent does not exist, or that
// sit on a parent cycle, become roots. It returns the number of rows
// rewritten.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Rebuild")
	defer span.End()

	var changed int
	err := e.store.Transaction(ctx, func(tx Store) error {
		nodes, err := tx.Query(ctx, All{}, ByLeft)
		if err != nil {
			return err
		}

		byID := make(map[int64]*Node, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}
		children := make(map[int64][]*Node)
		var roots []*Node
		for _, n := range nodes {
			if n.ParentID == nil || byID[*n.ParentID] == nil {
				roots = append(roots, n)
				continue
			}
			children[*n.ParentID] = append(children[*n.ParentID], n)
		}

		type bounds struct {
			parent             *int64
			left, right, depth int64
		}
		next := int64(1)
		out := make(map[int64]bounds, len(nodes))
		var number func(n *Node, parent *int64, depth int64)
		number = func(n *Node, parent *int64, depth int64) {
			left := next
			next++
			// mark before descending so cycles terminate
			out[n.ID] = bounds{parent: parent}
			for _, c := range children[n.ID] {
				if _, ok := out[c.ID]; ok {
					continue
				}
				number(c, Int64(n.ID), depth+1)
			}
			out[n.ID] = bounds{parent: parent, left: left, right: next, depth: depth}
			next++
		}
		for _, r := range roots {
			number(r, nil, 0)
		}
		for _, n := range nodes {
			if _, ok := out[n.ID]; !ok {
				e.log.Warn("breaking parent cycle", "node", n.ID)
				number(n, nil, 0)
			}
		}

		for _, n := range nodes {
			b := out[n.ID]
			if n.Left == b.left && n.Right == b.right && n.Depth == b.depth && sameParent(n.ParentID, b.parent) {
				continue
			}
			if _, err := tx.Update(ctx, ByID(n.ID), []Assignment{
				{Col: ColParent, Expr: Set{Value: b.parent}},
				{Col: ColLeft, Expr: Set{Value: Int64(b.left)}},
				{Col: ColRight, Expr: Set{Value: Int64(b.right)}},
				{Col: ColDepth, Expr: Set{Value: Int64(b.depth)}},
			}); err != nil {
				return fmt.Errorf("renumbering node %d: %w", n.ID, err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	rebuildsTotal.Inc()
	e.log.Info("rebuilt nested set", "rows", changed)
	return changed, nil
}
