package nestedset

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Target identifies the node a move is relative to: either by id, fetched
// fresh, or by handle, whose bounds are refreshed before use.
type Target struct {
	id   int64
	node *Node
}

func TargetID(id int64) Target {
	return Target{id: id}
}

func TargetNode(n *Node) Target {
	return Target{node: n}
}

// resolve returns nil when the target does not exist.
func (e *Engine) resolve(ctx context.Context, t Target) (*Node, error) {
	id := t.id
	if t.node != nil {
		id = t.node.ID
	}
	if id == 0 {
		return nil, nil
	}

	fresh, err := e.store.FetchByID(ctx, id)
	if errors.Is(err, ErrNodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if t.node != nil {
		t.node.copyTree(fresh)
		return t.node, nil
	}
	return fresh, nil
}

func validateMove(n, target *Node, pos Position) error {
	if target == nil {
		switch pos {
		case PositionLeft:
			return fmt.Errorf("%w: could not resolve target node, no further node to the left", ErrUnresolvedTarget)
		case PositionRight:
			return fmt.Errorf("%w: could not resolve target node, no further node to the right", ErrUnresolvedTarget)
		default:
			return fmt.Errorf("%w: could not resolve target node", ErrUnresolvedTarget)
		}
	}
	if n.ID == target.ID {
		return fmt.Errorf("%w: a node cannot be moved to itself", ErrInvalidMove)
	}
	if target.IsSelfOrDescendantOf(n) {
		return fmt.Errorf("%w: a node cannot be moved into its own subtree", ErrInvalidMove)
	}
	return nil
}

// prepareMove resolves and validates a move against the given store and
// reports whether it would leave the tree unchanged.
func (e *Engine) prepareMove(ctx context.Context, n *Node, t Target, pos Position) (*Node, bool, error) {
	if !n.HasBounds() {
		return nil, false, fmt.Errorf("%w: cannot move %s before it is saved", ErrInvalidState, n)
	}
	if !pos.Valid() {
		return nil, false, fmt.Errorf("%w: position %q must be one of child, left, right", ErrInvalidArgument, pos)
	}
	if err := e.store.Reload(ctx, n); err != nil {
		return nil, false, err
	}

	target, err := e.resolve(ctx, t)
	if err != nil {
		return nil, false, err
	}
	if err := validateMove(n, target, pos); err != nil {
		return nil, false, err
	}

	primary, err := PrimaryBoundary(n, target, pos)
	if err != nil {
		return nil, false, err
	}
	noop := primary == n.Right || primary == n.Left
	return target, noop, nil
}

// MoveTo relocates n, with its subtree, to pos relative to the target. All
// validation happens before the transaction that renumbers the rows; a move
// that would not change anything returns nil without writing.
func (e *Engine) MoveTo(ctx context.Context, n *Node, t Target, pos Position) error {
	ctx, span := tracer.Start(ctx, "MoveTo")
	defer span.End()
	span.SetAttributes(attribute.Int64("node", n.ID), attribute.String("position", string(pos)))

	_, noop, err := e.prepareMove(ctx, n, t, pos)
	if err != nil {
		span.RecordError(err)
		movesTotal.WithLabelValues(string(pos), "rejected").Inc()
		return err
	}
	if noop {
		movesTotal.WithLabelValues(string(pos), "noop").Inc()
		return nil
	}

	var renumbered int64
	err = e.store.Transaction(ctx, func(tx Store) error {
		var err error
		renumbered, err = e.withStore(tx).moveInTx(ctx, n, t, pos)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if isValidationError(err) {
			movesTotal.WithLabelValues(string(pos), "rejected").Inc()
		} else {
			movesTotal.WithLabelValues(string(pos), "failed").Inc()
		}
		return err
	}

	movesTotal.WithLabelValues(string(pos), "moved").Inc()
	rowsRenumbered.Observe(float64(renumbered))
	e.log.Debug("moved node", "node", n.ID, "position", pos, "left", n.Left, "right", n.Right, "depth", n.Depth, "renumbered", renumbered)
	return nil
}

// moveInTx runs inside the move transaction. Bounds are read again there so
// the swap is computed from the same snapshot it is applied to.
func (e *Engine) moveInTx(ctx context.Context, n *Node, t Target, pos Position) (int64, error) {
	target, noop, err := e.prepareMove(ctx, n, t, pos)
	if err != nil {
		return 0, err
	}
	if noop {
		return 0, nil
	}

	b, err := SortedBoundaries(n, target, pos)
	if err != nil {
		return 0, err
	}

	var newParent *int64
	if pos == PositionChild {
		newParent = Int64(target.ID)
	} else {
		newParent = target.ParentID
	}

	affected := Or{
		Between{Col: ColLeft, Lo: b.A, Hi: b.D},
		Between{Col: ColRight, Lo: b.A, Hi: b.D},
	}
	count, err := e.store.Update(ctx, affected, []Assignment{
		{Col: ColLeft, Expr: SwapBlocks{b}},
		{Col: ColRight, Expr: SwapBlocks{b}},
		{Col: ColParent, Expr: SetParentOf{ID: n.ID, Parent: newParent}},
	})
	if err != nil {
		return 0, fmt.Errorf("renumbering bounds: %w", err)
	}

	if t.node != nil {
		if err := e.store.Reload(ctx, t.node); err != nil {
			return 0, err
		}
	}
	if err := e.store.Reload(ctx, n); err != nil {
		return 0, err
	}
	if err := e.updateDepth(ctx, n); err != nil {
		return 0, err
	}
	if err := e.store.Reload(ctx, n); err != nil {
		return 0, err
	}
	return count, nil
}

// updateDepth recomputes the depth of n from its ancestors and shifts the
// depth of its whole subtree by the same offset.
func (e *Engine) updateDepth(ctx context.Context, n *Node) error {
	level, err := e.Level(ctx, n)
	if err != nil {
		return fmt.Errorf("computing level: %w", err)
	}
	delta := level - n.Depth
	if delta == 0 {
		return nil
	}
	if _, err := e.store.Update(ctx, Descendants(n, true), []Assignment{
		{Col: ColDepth, Expr: Add{Delta: delta}},
	}); err != nil {
		return fmt.Errorf("shifting subtree depth: %w", err)
	}
	n.Depth = level
	return nil
}

// MakeRoot moves n to the right of the root of its tree. Roots are left
// where they are.
func (e *Engine) MakeRoot(ctx context.Context, n *Node) error {
	if !n.HasBounds() {
		return fmt.Errorf("%w: cannot move %s before it is saved", ErrInvalidState, n)
	}
	if err := e.store.Reload(ctx, n); err != nil {
		return err
	}
	if n.IsRoot() {
		return nil
	}
	root, err := e.Root(ctx, n)
	if err != nil {
		return err
	}
	return e.MoveTo(ctx, n, TargetID(root.ID), PositionRight)
}

func (e *Engine) MakeChildOf(ctx context.Context, n *Node, parent Target) error {
	return e.MoveTo(ctx, n, parent, PositionChild)
}

// MoveLeft swaps n with its immediate left sibling.
func (e *Engine) MoveLeft(ctx context.Context, n *Node) error {
	return e.moveBeside(ctx, n, PositionLeft)
}

// MoveRight swaps n with its immediate right sibling.
func (e *Engine) MoveRight(ctx context.Context, n *Node) error {
	return e.moveBeside(ctx, n, PositionRight)
}

func (e *Engine) moveBeside(ctx context.Context, n *Node, pos Position) error {
	if !n.HasBounds() {
		return fmt.Errorf("%w: cannot move %s before it is saved", ErrInvalidState, n)
	}
	if err := e.store.Reload(ctx, n); err != nil {
		return err
	}

	p := RightSibling(n)
	if pos == PositionLeft {
		p = LeftSibling(n)
	}
	sibs, err := e.query(ctx, p)
	if err != nil {
		return err
	}
	if len(sibs) == 0 {
		return validateMove(n, nil, pos)
	}
	return e.MoveTo(ctx, n, TargetID(sibs[0].ID), pos)
}

func (e *Engine) MakeNextSiblingOf(ctx context.Context, n *Node, sibling Target) error {
	return e.MoveTo(ctx, n, sibling, PositionRight)
}

func (e *Engine) MakeSiblingOf(ctx context.Context, n *Node, sibling Target) error {
	return e.MakeNextSiblingOf(ctx, n, sibling)
}

func (e *Engine) MakePreviousSiblingOf(ctx context.Context, n *Node, sibling Target) error {
	return e.MoveTo(ctx, n, sibling, PositionLeft)
}
