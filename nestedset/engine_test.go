package nestedset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndMoveScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		r := create(t, e, "R", nil)
		assert.Equal("(1,2)", bounds(r))

		a := create(t, e, "A", r)
		reload(t, e, r)
		assert.Equal("(1,4)", bounds(r))
		assert.Equal("(2,3)", bounds(a))

		b := create(t, e, "B", r)
		reload(t, e, r, a)
		assert.Equal("(1,6)", bounds(r))
		assert.Equal("(2,3)", bounds(a))
		assert.Equal("(4,5)", bounds(b))

		require.NoError(e.MakeChildOf(ctx, b, TargetNode(a)))
		reload(t, e, r)
		assert.Equal("(1,6)", bounds(r))
		assert.Equal("(2,5)", bounds(a))
		assert.Equal("(3,4)", bounds(b))

		assert.Equal(int64(0), r.Depth)
		assert.Equal(int64(1), a.Depth)
		assert.Equal(int64(2), b.Depth)
		require.NotNil(b.ParentID)
		assert.Equal(a.ID, *b.ParentID)

		requireValid(t, e)
	})
}

// root(1,10) > A(2,5) > B(3,4), C(6,9) > D(7,8)
func buildFiveNodeTree(t *testing.T, e *Engine) (root, a, b, c, d *Node) {
	root = create(t, e, "root", nil)
	a = create(t, e, "A", root)
	b = create(t, e, "B", a)
	c = create(t, e, "C", root)
	d = create(t, e, "D", c)
	reload(t, e, root, a, b, c, d)

	require.Equal(t, "(1,10)", bounds(root))
	require.Equal(t, "(2,5)", bounds(a))
	require.Equal(t, "(3,4)", bounds(b))
	require.Equal(t, "(6,9)", bounds(c))
	require.Equal(t, "(7,8)", bounds(d))
	return root, a, b, c, d
}

func TestDeleteSubtreeRepacks(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		root, a, b, c, d := buildFiveNodeTree(t, e)

		require.NoError(e.Destroy(ctx, a))

		after := rows(t, e)
		assert.Len(after, 3)
		assert.NotContains(after, a.ID)
		assert.NotContains(after, b.ID)
		assert.Equal(row{Left: 1, Right: 6}, after[root.ID])
		assert.Equal(row{Parent: root.ID, Left: 2, Right: 5, Depth: 1}, after[c.ID])
		assert.Equal(row{Parent: c.ID, Left: 3, Right: 4, Depth: 2}, after[d.ID])

		requireValid(t, e)
	})
}

func TestDeleteSubtreeKeepsNodeRow(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		ctx := context.Background()

		_, a, b, _, _ := buildFiveNodeTree(t, e)

		// the hook only removes descendants; the host deletes the row itself
		assert.NoError(e.DeleteSubtree(ctx, a))
		after := rows(t, e)
		assert.Contains(after, a.ID)
		assert.NotContains(after, b.ID)

		// unsaved nodes are ignored
		assert.NoError(e.DeleteSubtree(ctx, &Node{}))
	})
}

func TestMoveRejectsCycles(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		ctx := context.Background()

		root, a, b, _, _ := buildFiveNodeTree(t, e)
		before := rows(t, e)

		assert.ErrorIs(e.MakeChildOf(ctx, a, TargetNode(b)), ErrInvalidMove)
		assert.ErrorIs(e.MakeChildOf(ctx, root, TargetNode(b)), ErrInvalidMove)
		assert.ErrorIs(e.MakeChildOf(ctx, a, TargetNode(a)), ErrInvalidMove)
		assert.ErrorIs(e.MakePreviousSiblingOf(ctx, a, TargetID(a.ID)), ErrInvalidMove)

		assert.Equal(before, rows(t, e))
	})
}

func TestMoveValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		ctx := context.Background()

		root, a, _, c, _ := buildFiveNodeTree(t, e)
		before := rows(t, e)

		assert.ErrorIs(e.MakeChildOf(ctx, &Node{}, TargetNode(root)), ErrInvalidState)
		assert.ErrorIs(e.MakeRoot(ctx, &Node{}), ErrInvalidState)
		assert.ErrorIs(e.MoveTo(ctx, a, TargetNode(c), Position("inside")), ErrInvalidArgument)
		assert.ErrorIs(e.MakeChildOf(ctx, a, TargetID(9999)), ErrUnresolvedTarget)
		assert.ErrorIs(e.MakeChildOf(ctx, a, TargetNode(&Node{})), ErrUnresolvedTarget)

		// first child has nothing to its left, last child nothing to its right
		err := e.MoveLeft(ctx, a)
		assert.ErrorIs(err, ErrUnresolvedTarget)
		assert.Contains(err.Error(), "to the left")
		err = e.MoveRight(ctx, c)
		assert.ErrorIs(err, ErrUnresolvedTarget)
		assert.Contains(err.Error(), "to the right")

		assert.Equal(before, rows(t, e))
	})
}

func TestNoopMoveLeavesRowsUnchanged(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		ctx := context.Background()

		root, a, b, c, _ := buildFiveNodeTree(t, e)
		before := rows(t, e)

		assert.NoError(e.MakeNextSiblingOf(ctx, c, TargetNode(a)))
		assert.NoError(e.MakePreviousSiblingOf(ctx, a, TargetNode(c)))
		assert.NoError(e.MakeChildOf(ctx, b, TargetNode(a)))
		assert.NoError(e.MakeRoot(ctx, root))

		assert.Equal(before, rows(t, e))
	})
}

func TestSiblingMoves(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		root, a, b, c, d := buildFiveNodeTree(t, e)

		require.NoError(e.MoveRight(ctx, a))
		reload(t, e, b, c, d)
		assert.Equal("(2,5)", bounds(c))
		assert.Equal("(3,4)", bounds(d))
		assert.Equal("(6,9)", bounds(a))
		assert.Equal("(7,8)", bounds(b))
		requireValid(t, e)

		require.NoError(e.MoveLeft(ctx, a))
		after := rows(t, e)
		assert.Equal(row{Parent: root.ID, Left: 2, Right: 5, Depth: 1}, after[a.ID])
		assert.Equal(row{Parent: root.ID, Left: 6, Right: 9, Depth: 1}, after[c.ID])

		require.NoError(e.MakeSiblingOf(ctx, d, TargetNode(a)))
		requireValid(t, e)
		kids, err := e.Children(ctx, root)
		require.NoError(err)
		require.Len(kids, 3)
		assert.Equal([]int64{a.ID, d.ID, c.ID}, []int64{kids[0].ID, kids[1].ID, kids[2].ID})
		assert.True(kids[2].IsLeaf())
	})
}

func TestMakeRoot(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		root, a, b, _, _ := buildFiveNodeTree(t, e)

		require.NoError(e.MakeRoot(ctx, a))
		assert.Nil(a.ParentID)
		assert.Equal(int64(0), a.Depth)
		assert.Equal("(7,10)", bounds(a))

		reload(t, e, root, b)
		assert.Equal("(1,6)", bounds(root))
		assert.Equal(int64(1), b.Depth)

		roots, err := e.Roots(ctx)
		require.NoError(err)
		require.Len(roots, 2)
		assert.Equal(root.ID, roots[0].ID)
		assert.Equal(a.ID, roots[1].ID)

		requireValid(t, e)
	})
}

func TestMoveSubtreeAcrossTrees(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		_, a, b, _, _ := buildFiveNodeTree(t, e)
		other := create(t, e, "other", nil)
		leaf := create(t, e, "leaf", other)

		// A carries B along below leaf
		require.NoError(e.MakeChildOf(ctx, a, TargetNode(leaf)))
		requireValid(t, e)

		reload(t, e, b, other)
		assert.Equal(int64(2), a.Depth)
		assert.Equal(int64(3), b.Depth)
		assert.True(a.IsDescendantOf(other))
		assert.True(b.IsDescendantOf(leaf))

		top, err := e.Root(ctx, b)
		require.NoError(err)
		assert.Equal(other.ID, top.ID)
	})
}

func TestCreateUnderMissingParentRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		ctx := context.Background()

		create(t, e, "root", nil)
		before := rows(t, e)

		n := &Node{ParentID: Int64(4242)}
		err := e.Create(ctx, n)
		assert.ErrorIs(err, ErrUnresolvedTarget)
		assert.False(n.HasBounds())
		assert.Equal(int64(4242), *n.ParentID)
		assert.Equal(before, rows(t, e))
	})
}

func TestSaveRealignsChangedParent(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		root, a, b, c, d := buildFiveNodeTree(t, e)

		// payload-only save does not move anything
		before := rows(t, e)
		c.Attrs = map[string]any{"name": "C2"}
		require.NoError(e.Save(ctx, c))
		assert.Equal(before, rows(t, e))

		// reparenting through the attribute moves the subtree
		c.ParentID = Int64(b.ID)
		require.NoError(e.Save(ctx, c))
		requireValid(t, e)
		reload(t, e, c, d)
		assert.Equal(b.ID, *c.ParentID)
		assert.Equal(int64(3), c.Depth)
		assert.Equal(int64(4), d.Depth)

		// clearing the parent makes it a root again
		c.ParentID = nil
		require.NoError(e.Save(ctx, c))
		requireValid(t, e)
		reload(t, e, c, root, a)
		assert.True(c.IsRoot())
		assert.Equal("(1,6)", bounds(root))
		assert.Equal("(2,5)", bounds(a))
		assert.Equal("(7,10)", bounds(c))

		got, err := e.Store().FetchByID(ctx, c.ID)
		require.NoError(err)
		assert.Equal("C2", nameOf(got))
	})
}

func TestReads(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		assert := assert.New(t)
		require := require.New(t)
		ctx := context.Background()

		root, a, b, c, d := buildFiveNodeTree(t, e)
		ids := func(nodes []*Node, err error) []int64 {
			require.NoError(err)
			out := make([]int64, len(nodes))
			for i, n := range nodes {
				out[i] = n.ID
			}
			return out
		}

		assert.Equal([]int64{a.ID, b.ID, c.ID, d.ID}, ids(e.Descendants(ctx, root)))
		assert.Equal([]int64{root.ID, a.ID, b.ID, c.ID, d.ID}, ids(e.DescendantsAndSelf(ctx, root)))
		assert.Equal([]int64{root.ID, c.ID}, ids(e.Ancestors(ctx, d)))
		assert.Equal([]int64{root.ID, c.ID, d.ID}, ids(e.AncestorsAndSelf(ctx, d)))
		assert.Equal([]int64{c.ID}, ids(e.Siblings(ctx, a)))
		assert.Equal([]int64{a.ID, c.ID}, ids(e.SiblingsAndSelf(ctx, a)))
		assert.Equal([]int64{b.ID, d.ID}, ids(e.Leaves(ctx, root)))
		assert.Equal([]int64{a.ID, c.ID}, ids(e.Children(ctx, root)))
		assert.Empty(ids(e.Descendants(ctx, &Node{})))

		lvl, err := e.Level(ctx, d)
		require.NoError(err)
		assert.Equal(int64(2), lvl)

		top, err := e.Root(ctx, d)
		require.NoError(err)
		assert.Equal(root.ID, top.ID)

		// unsaved nodes walk their parent chain
		pending := &Node{ParentID: Int64(d.ID)}
		top, err = e.Root(ctx, pending)
		require.NoError(err)
		assert.Equal(root.ID, top.ID)
		lvl, err = e.Level(ctx, pending)
		require.NoError(err)
		assert.Equal(int64(3), lvl)

		p, err := e.Parent(ctx, d)
		require.NoError(err)
		assert.Equal(c.ID, p.ID)
		p, err = e.Parent(ctx, root)
		require.NoError(err)
		assert.Nil(p)

		in, err := e.IsDescendantOf(ctx, b, root)
		require.NoError(err)
		assert.True(in)
		in, err = e.IsDescendantOf(ctx, b, c)
		require.NoError(err)
		assert.False(in)

		// named filters compose with other predicates
		nonRoot, err := e.Store().Query(ctx, And{Descendants(root, true), WithoutRoot(), WithoutNode(c)}, ByLeft)
		assert.Equal([]int64{a.ID, b.ID, d.ID}, ids(nonRoot, err))
	})
}

func TestContainmentMatchesAncestry(t *testing.T) {
	forEachStore(t, func(t *testing.T, e *Engine) {
		buildFiveNodeTree(t, e)
		nodes, err := e.Tree(context.Background())
		require.NoError(t, err)
		assertAncestryConsistent(t, nodes)
	})
}

// assertAncestryConsistent compares interval containment against an
// independent walk of the parent pointers.
func assertAncestryConsistent(t *testing.T, nodes []*Node) {
	t.Helper()
	byID := make(map[int64]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	isAncestor := func(a, b *Node) bool {
		for cur := b; cur.ParentID != nil; {
			cur = byID[*cur.ParentID]
			if cur == nil {
				return false
			}
			if cur.ID == a.ID {
				return true
			}
		}
		return false
	}
	for _, a := range nodes {
		for _, b := range nodes {
			contained := a.Left < b.Left && b.Right < a.Right
			assert.Equal(t, isAncestor(a, b), contained, "%s vs %s", a, b)
		}
	}
}
