package nestedset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("nestedset")

// Engine maintains the nested-set columns of one hosted table. It holds no
// locks of its own; every multi-row mutation runs in a store transaction and
// correctness under concurrent movers depends on the store's isolation level
// (repeatable read or better).
type Engine struct {
	store Store
	log   *slog.Logger
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   slog.Default().With("system", "nestedset"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Store() Store {
	return e.store
}

// withStore returns an engine sharing configuration but bound to s, used to
// run nested operations inside an open transaction.
func (e *Engine) withStore(s Store) *Engine {
	return &Engine{store: s, log: e.log}
}

func (e *Engine) query(ctx context.Context, p Predicate) ([]*Node, error) {
	return e.store.Query(ctx, p, ByLeft)
}

func (e *Engine) Descendants(ctx context.Context, n *Node) ([]*Node, error) {
	if !n.HasBounds() {
		return nil, nil
	}
	return e.query(ctx, Descendants(n, false))
}

func (e *Engine) DescendantsAndSelf(ctx context.Context, n *Node) ([]*Node, error) {
	if !n.HasBounds() {
		return nil, nil
	}
	return e.query(ctx, Descendants(n, true))
}

func (e *Engine) Ancestors(ctx context.Context, n *Node) ([]*Node, error) {
	if !n.HasBounds() {
		return nil, nil
	}
	return e.query(ctx, Ancestors(n, false))
}

func (e *Engine) AncestorsAndSelf(ctx context.Context, n *Node) ([]*Node, error) {
	if !n.HasBounds() {
		return nil, nil
	}
	return e.query(ctx, Ancestors(n, true))
}

func (e *Engine) Siblings(ctx context.Context, n *Node) ([]*Node, error) {
	return e.query(ctx, Siblings(n, false))
}

func (e *Engine) SiblingsAndSelf(ctx context.Context, n *Node) ([]*Node, error) {
	return e.query(ctx, Siblings(n, true))
}

func (e *Engine) Leaves(ctx context.Context, n *Node) ([]*Node, error) {
	if !n.HasBounds() {
		return nil, nil
	}
	return e.query(ctx, Leaves(n))
}

func (e *Engine) Children(ctx context.Context, n *Node) ([]*Node, error) {
	if n.ID == 0 {
		return nil, nil
	}
	return e.query(ctx, Children(n))
}

func (e *Engine) Roots(ctx context.Context) ([]*Node, error) {
	return e.query(ctx, Roots())
}

// Tree returns every row of the table in preorder.
func (e *Engine) Tree(ctx context.Context) ([]*Node, error) {
	return e.query(ctx, All{})
}

// Parent returns nil for a root.
func (e *Engine) Parent(ctx context.Context, n *Node) (*Node, error) {
	if n.ParentID == nil {
		return nil, nil
	}
	return e.store.FetchByID(ctx, *n.ParentID)
}

// Root returns the root of the tree containing n. Unsaved nodes have no
// bounds yet, so their parent chain is walked instead.
func (e *Engine) Root(ctx context.Context, n *Node) (*Node, error) {
	if !n.HasBounds() {
		cur := n
		for cur.ParentID != nil {
			p, err := e.store.FetchByID(ctx, *cur.ParentID)
			if err != nil {
				return nil, err
			}
			cur = p
		}
		return cur, nil
	}

	roots, err := e.query(ctx, RootOf(n))
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no root contains %s", ErrNodeNotFound, n)
	}
	return roots[0], nil
}

// Level computes the depth of n from scratch.
func (e *Engine) Level(ctx context.Context, n *Node) (int64, error) {
	if n.ParentID == nil {
		return 0, nil
	}
	if !n.HasBounds() {
		var level int64
		for cur := n; cur.ParentID != nil; level++ {
			p, err := e.store.FetchByID(ctx, *cur.ParentID)
			if err != nil {
				return 0, err
			}
			cur = p
		}
		return level, nil
	}

	anc, err := e.query(ctx, Ancestors(n, false))
	if err != nil {
		return 0, err
	}
	return int64(len(anc)), nil
}

// IsDescendantOf reads fresh bounds for both nodes before comparing.
func (e *Engine) IsDescendantOf(ctx context.Context, n, other *Node) (bool, error) {
	if !n.HasBounds() || !other.HasBounds() {
		return false, nil
	}
	a, err := e.store.FetchByID(ctx, n.ID)
	if err != nil {
		return false, err
	}
	b, err := e.store.FetchByID(ctx, other.ID)
	if err != nil {
		return false, err
	}
	return a.IsDescendantOf(b), nil
}

// maxRight is the largest right bound in the table, 0 when empty.
func maxRight(ctx context.Context, s Store) (int64, error) {
	last, err := s.FetchOrderedBy(ctx, Order{Col: ColRight, Dir: Desc}, 1)
	if err != nil {
		return 0, err
	}
	if len(last) == 0 {
		return 0, nil
	}
	return last[0].Right, nil
}

// Create inserts n as the right-most root and then, when n declares a
// parent, moves it under that parent, all in one transaction.
func (e *Engine) Create(ctx context.Context, n *Node) error {
	ctx, span := tracer.Start(ctx, "Create")
	defer span.End()

	if n.HasBounds() {
		return fmt.Errorf("%w: %s already has bounds", ErrInvalidArgument, n)
	}

	id, declared := n.ID, n.ParentID
	err := e.store.Transaction(ctx, func(tx Store) error {
		te := e.withStore(tx)
		if err := te.OnBeforeCreate(ctx, n); err != nil {
			return err
		}
		if err := tx.Insert(ctx, n); err != nil {
			return err
		}
		return te.OnAfterSave(ctx, n)
	})
	if err != nil {
		span.RecordError(err)
		// nothing was committed
		n.ID, n.Left, n.Right, n.Depth = id, 0, 0, 0
		n.ParentID = declared
		n.moveToNewParent = false
		n.newParent = nil
		return err
	}

	nodesCreated.Inc()
	e.log.Debug("created node", "node", n.ID, "left", n.Left, "right", n.Right, "depth", n.Depth)
	return nil
}

// Save writes the payload of a persisted node. When ParentID was changed
// since the node was loaded, the node is moved to its new parent after the
// write.
func (e *Engine) Save(ctx context.Context, n *Node) error {
	if !n.HasBounds() {
		return e.Create(ctx, n)
	}
	return e.store.Transaction(ctx, func(tx Store) error {
		te := e.withStore(tx)
		if err := te.OnBeforeSave(ctx, n); err != nil {
			return err
		}
		if err := tx.Save(ctx, n); err != nil {
			return err
		}
		return te.OnAfterSave(ctx, n)
	})
}

// Destroy removes n and its whole subtree.
func (e *Engine) Destroy(ctx context.Context, n *Node) error {
	if n.ID == 0 {
		return nil
	}
	return e.store.Transaction(ctx, func(tx Store) error {
		if err := e.withStore(tx).OnBeforeDelete(ctx, n); err != nil {
			return err
		}
		if _, err := tx.Delete(ctx, ByID(n.ID)); err != nil {
			return err
		}
		n.Left, n.Right = 0, 0
		return nil
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrUnresolvedTarget) ||
		errors.Is(err, ErrInvalidMove)
}
