package nestedset

import (
	"context"
	"fmt"
)

// DeleteSubtree removes every strict descendant of n and closes the gap so
// the rest of the table stays tightly packed once the host deletes n's own
// row. Nodes without bounds are ignored.
func (e *Engine) DeleteSubtree(ctx context.Context, n *Node) error {
	if !n.HasBounds() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "DeleteSubtree")
	defer span.End()

	var deleted int64
	err := e.store.Transaction(ctx, func(tx Store) error {
		if err := tx.Reload(ctx, n); err != nil {
			return err
		}

		var err error
		deleted, err = tx.Delete(ctx, And{
			Cmp{Col: ColLeft, Op: OpGt, Value: n.Left},
			Cmp{Col: ColLeft, Op: OpLt, Value: n.Right},
		})
		if err != nil {
			return fmt.Errorf("deleting descendants: %w", err)
		}

		width := n.Width()
		if _, err := tx.Decrement(ctx, Cmp{Col: ColLeft, Op: OpGt, Value: n.Right}, ColLeft, width); err != nil {
			return fmt.Errorf("closing left bounds: %w", err)
		}
		if _, err := tx.Decrement(ctx, Cmp{Col: ColRight, Op: OpGt, Value: n.Right}, ColRight, width); err != nil {
			return fmt.Errorf("closing right bounds: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	subtreesDeleted.Inc()
	e.log.Debug("deleted subtree", "node", n.ID, "descendants", deleted)
	return nil
}
