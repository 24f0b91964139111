package nestedset

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. Transactions are serialized by a single
// lock and roll back by restoring a snapshot of the rows.
type MemStore struct {
	lk     sync.Mutex
	rows   map[int64]*Node
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		rows: make(map[int64]*Node),
	}
}

// memTx operates on the rows of a MemStore whose lock is already held.
type memTx struct {
	s *MemStore
}

func (s *MemStore) locked(fn func(tx *memTx) error) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	return fn(&memTx{s: s})
}

func (s *MemStore) FetchByID(ctx context.Context, id int64) (out *Node, err error) {
	err = s.locked(func(tx *memTx) error {
		out, err = tx.FetchByID(ctx, id)
		return err
	})
	return out, err
}

func (s *MemStore) FetchOrderedBy(ctx context.Context, order Order, limit int) (out []*Node, err error) {
	err = s.locked(func(tx *memTx) error {
		out, err = tx.FetchOrderedBy(ctx, order, limit)
		return err
	})
	return out, err
}

func (s *MemStore) Query(ctx context.Context, p Predicate, order Order) (out []*Node, err error) {
	err = s.locked(func(tx *memTx) error {
		out, err = tx.Query(ctx, p, order)
		return err
	})
	return out, err
}

func (s *MemStore) Update(ctx context.Context, p Predicate, set []Assignment) (n int64, err error) {
	err = s.locked(func(tx *memTx) error {
		n, err = tx.Update(ctx, p, set)
		return err
	})
	return n, err
}

func (s *MemStore) Delete(ctx context.Context, p Predicate) (n int64, err error) {
	err = s.locked(func(tx *memTx) error {
		n, err = tx.Delete(ctx, p)
		return err
	})
	return n, err
}

func (s *MemStore) Decrement(ctx context.Context, p Predicate, col Column, amount int64) (n int64, err error) {
	err = s.locked(func(tx *memTx) error {
		n, err = tx.Decrement(ctx, p, col, amount)
		return err
	})
	return n, err
}

func (s *MemStore) Insert(ctx context.Context, n *Node) error {
	return s.locked(func(tx *memTx) error {
		return tx.Insert(ctx, n)
	})
}

func (s *MemStore) Save(ctx context.Context, n *Node) error {
	return s.locked(func(tx *memTx) error {
		return tx.Save(ctx, n)
	})
}

func (s *MemStore) Reload(ctx context.Context, n *Node) error {
	return s.locked(func(tx *memTx) error {
		return tx.Reload(ctx, n)
	})
}

func (s *MemStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.locked(func(tx *memTx) error {
		return tx.Transaction(ctx, fn)
	})
}

// Rows returns a copy of every row in preorder.
func (s *MemStore) Rows() []*Node {
	out, _ := s.Query(context.Background(), All{}, ByLeft)
	return out
}

func (tx *memTx) FetchByID(ctx context.Context, id int64) (*Node, error) {
	row, ok := tx.s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return row.Clone(), nil
}

func (tx *memTx) FetchOrderedBy(ctx context.Context, order Order, limit int) ([]*Node, error) {
	out, err := tx.Query(ctx, All{}, order)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (tx *memTx) Query(ctx context.Context, p Predicate, order Order) ([]*Node, error) {
	var out []*Node
	for _, row := range tx.s.rows {
		if p.Match(row) {
			out = append(out, row.Clone())
		}
	}
	sortNodes(out, order)
	return out, nil
}

func (tx *memTx) Update(ctx context.Context, p Predicate, set []Assignment) (int64, error) {
	var count int64
	for _, row := range tx.s.rows {
		if p.Match(row) {
			apply(row, set)
			count++
		}
	}
	return count, nil
}

func (tx *memTx) Delete(ctx context.Context, p Predicate) (int64, error) {
	var count int64
	for id, row := range tx.s.rows {
		if p.Match(row) {
			delete(tx.s.rows, id)
			count++
		}
	}
	return count, nil
}

func (tx *memTx) Decrement(ctx context.Context, p Predicate, col Column, amount int64) (int64, error) {
	return tx.Update(ctx, p, []Assignment{{Col: col, Expr: Add{Delta: -amount}}})
}

func (tx *memTx) Insert(ctx context.Context, n *Node) error {
	if n.ID == 0 {
		tx.s.nextID++
		n.ID = tx.s.nextID
	} else if _, ok := tx.s.rows[n.ID]; ok {
		return fmt.Errorf("node %d already exists", n.ID)
	} else if n.ID > tx.s.nextID {
		tx.s.nextID = n.ID
	}
	tx.s.rows[n.ID] = n.Clone()
	return nil
}

func (tx *memTx) Save(ctx context.Context, n *Node) error {
	row, ok := tx.s.rows[n.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, n.ID)
	}
	c := n.Clone()
	row.Attrs = c.Attrs
	row.Depth = c.Depth
	return nil
}

func (tx *memTx) Reload(ctx context.Context, n *Node) error {
	row, err := tx.FetchByID(ctx, n.ID)
	if err != nil {
		return err
	}
	n.copyTree(row)
	n.Attrs = row.Attrs
	return nil
}

// Transaction on an open transaction behaves like a savepoint.
func (tx *memTx) Transaction(ctx context.Context, fn func(tx Store) error) error {
	snap := make(map[int64]*Node, len(tx.s.rows))
	for id, row := range tx.s.rows {
		snap[id] = row.Clone()
	}
	nextID := tx.s.nextID

	if err := fn(tx); err != nil {
		tx.s.rows = snap
		tx.s.nextID = nextID
		return err
	}
	return nil
}

func sortNodes(nodes []*Node, order Order) {
	sort.Slice(nodes, func(i, j int) bool {
		a, aok := nodes[i].value(order.Col)
		b, bok := nodes[j].value(order.Col)
		if aok != bok || a != b {
			// NULLs sort first ascending
			less := !aok || (bok && a < b)
			if order.Dir == Desc {
				return !less
			}
			return less
		}
		return nodes[i].ID < nodes[j].ID
	})
}
