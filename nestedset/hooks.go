package nestedset

import (
	"context"
	"errors"
	"fmt"
)

// Lifecycle is the set of callbacks a host entity invokes around its own
// persistence. The host calls, in order:
//
//	create:  OnBeforeCreate, OnBeforeSave, insert row, OnAfterSave
//	update:  OnBeforeSave, write row, OnAfterSave
//	delete:  OnBeforeDelete, delete row
//
// each sequence inside a single transaction whose Store the engine is bound
// to (see Engine.Tx).
type Lifecycle interface {
	OnBeforeCreate(ctx context.Context, n *Node) error
	OnBeforeSave(ctx context.Context, n *Node) error
	OnAfterSave(ctx context.Context, n *Node) error
	OnBeforeDelete(ctx context.Context, n *Node) error
}

var _ Lifecycle = (*Engine)(nil)

// Tx returns an engine bound to a store already inside a transaction; hosts
// use it to invoke the lifecycle callbacks within their own transaction.
func (e *Engine) Tx(tx Store) *Engine {
	return e.withStore(tx)
}

// OnBeforeCreate gives n the next free pair of bounds at the far right of
// the table, making it a new root. A declared parent is remembered and
// applied by OnAfterSave once the row exists.
func (e *Engine) OnBeforeCreate(ctx context.Context, n *Node) error {
	max, err := maxRight(ctx, e.store)
	if err != nil {
		return fmt.Errorf("finding right-most bound: %w", err)
	}
	n.Left = max + 1
	n.Right = max + 2
	n.Depth = 0

	if n.ParentID != nil {
		n.newParent = n.ParentID
		n.moveToNewParent = true
		n.ParentID = nil
	}
	return nil
}

// OnBeforeSave detects a parent changed directly on a persisted node. The
// stored tree columns are restored on n so the row write leaves them alone,
// and the new parent is applied by OnAfterSave.
func (e *Engine) OnBeforeSave(ctx context.Context, n *Node) error {
	if n.ID == 0 || n.moveToNewParent {
		return nil
	}

	stored, err := e.store.FetchByID(ctx, n.ID)
	if errors.Is(err, ErrNodeNotFound) {
		// row is being inserted by the host
		return nil
	}
	if err != nil {
		return err
	}

	if !sameParent(stored.ParentID, n.ParentID) {
		n.newParent = n.ParentID
		n.moveToNewParent = true
	}
	n.copyTree(stored)
	return nil
}

// OnAfterSave moves n to the parent captured by OnBeforeCreate or
// OnBeforeSave, if any.
func (e *Engine) OnAfterSave(ctx context.Context, n *Node) error {
	if !n.moveToNewParent {
		return nil
	}
	parent := n.newParent
	n.moveToNewParent = false
	n.newParent = nil

	if parent == nil {
		return e.MakeRoot(ctx, n)
	}
	return e.MakeChildOf(ctx, n, TargetID(*parent))
}

// OnBeforeDelete removes the subtree below n and closes the gap it leaves.
func (e *Engine) OnBeforeDelete(ctx context.Context, n *Node) error {
	return e.DeleteSubtree(ctx, n)
}
