package nestedset

import "context"

// Store is the transactional repository the engine runs against. Column
// names are resolved by the implementation from its Columns configuration.
type Store interface {
	// FetchByID returns ErrNodeNotFound when no row has the id.
	FetchByID(ctx context.Context, id int64) (*Node, error)
	FetchOrderedBy(ctx context.Context, order Order, limit int) ([]*Node, error)
	Query(ctx context.Context, p Predicate, order Order) ([]*Node, error)

	// Update applies all assignments to every matching row at once; each
	// expression sees the pre-update values of the row.
	Update(ctx context.Context, p Predicate, set []Assignment) (int64, error)
	Delete(ctx context.Context, p Predicate) (int64, error)
	Decrement(ctx context.Context, p Predicate, col Column, amount int64) (int64, error)

	// Insert persists a new row and assigns n.ID.
	Insert(ctx context.Context, n *Node) error
	// Save writes the payload and depth of an existing row.
	Save(ctx context.Context, n *Node) error

	// Transaction runs fn against a store bound to one transaction,
	// committing when fn returns nil and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// Reload refreshes the tree columns of n from the store.
	Reload(ctx context.Context, n *Node) error
}

// Assignment sets one column to the value of an expression.
type Assignment struct {
	Col  Column
	Expr Expr
}

// Expr is a store-evaluated column expression. Eval computes the new value
// from the current one (nil meaning NULL) and the pre-update row.
type Expr interface {
	Eval(cur *int64, row *Node) *int64
}

// Set assigns a constant; a nil Value writes NULL.
type Set struct {
	Value *int64
}

func (s Set) Eval(_ *int64, _ *Node) *int64 {
	return s.Value
}

// Add offsets the current value.
type Add struct {
	Delta int64
}

func (a Add) Eval(cur *int64, _ *Node) *int64 {
	if cur == nil {
		return nil
	}
	return Int64(*cur + a.Delta)
}

// SwapBlocks exchanges the blocks [A,B] and [C,D]:
//
//	CASE WHEN col BETWEEN a AND b THEN col + (d - b)
//	     WHEN col BETWEEN c AND d THEN col + (a - c)
//	     ELSE col END
type SwapBlocks struct {
	Boundaries
}

func (s SwapBlocks) Eval(cur *int64, _ *Node) *int64 {
	if cur == nil {
		return nil
	}
	return Int64(s.Shift(*cur))
}

// SetParentOf writes Parent on the row identified by ID and leaves every
// other row untouched:
//
//	CASE WHEN id = ? THEN ? ELSE col END
type SetParentOf struct {
	ID     int64
	Parent *int64
}

func (s SetParentOf) Eval(cur *int64, row *Node) *int64 {
	if row.ID == s.ID {
		return s.Parent
	}
	return cur
}

// apply evaluates every assignment against the original row and then writes
// the results, so assignments never observe each other.
func apply(row *Node, set []Assignment) {
	orig := row.Clone()
	vals := make([]*int64, len(set))
	for i, a := range set {
		var cur *int64
		if v, ok := orig.value(a.Col); ok {
			cur = Int64(v)
		}
		vals[i] = a.Expr.Eval(cur, orig)
	}
	for i, a := range set {
		row.setValue(a.Col, vals[i])
	}
}

func (n *Node) setValue(col Column, v *int64) {
	var iv int64
	if v != nil {
		iv = *v
	}
	switch col {
	case ColID:
		n.ID = iv
	case ColParent:
		if v == nil {
			n.ParentID = nil
		} else {
			n.ParentID = Int64(iv)
		}
	case ColLeft:
		n.Left = iv
	case ColRight:
		n.Right = iv
	case ColDepth:
		n.Depth = iv
	}
}
