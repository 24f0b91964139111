package nestedset

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testNode struct {
	ID       int64  `gorm:"primaryKey"`
	ParentID *int64 `gorm:"index"`
	Lft      int64  `gorm:"index"`
	Rgt      int64  `gorm:"index"`
	Depth    int64
	Name     string
}

func (testNode) TableName() string {
	return "test_nodes"
}

func testColumns() Columns {
	cols := DefaultColumns("test_nodes")
	cols.Payload = []string{"name"}
	return cols
}

func testGormStore(t testing.TB) *GormStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	// every connection to :memory: is its own database
	sqldb, err := db.DB()
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&testNode{}))

	s, err := NewGormStore(db, testColumns())
	require.NoError(t, err)
	return s
}

// forEachStore runs fn against a fresh engine over each Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, e *Engine)) {
	t.Run("mem", func(t *testing.T) {
		fn(t, New(NewMemStore()))
	})
	t.Run("gorm", func(t *testing.T) {
		fn(t, New(testGormStore(t)))
	})
}

func create(t testing.TB, e *Engine, name string, parent *Node) *Node {
	t.Helper()
	n := &Node{Attrs: map[string]any{"name": name}}
	if parent != nil {
		n.ParentID = Int64(parent.ID)
	}
	require.NoError(t, e.Create(context.Background(), n))
	return n
}

type row struct {
	Parent      int64
	Left, Right int64
	Depth       int64
}

// rows snapshots the tree columns of the whole table, keyed by id; roots
// have Parent 0.
func rows(t testing.TB, e *Engine) map[int64]row {
	t.Helper()
	nodes, err := e.Tree(context.Background())
	require.NoError(t, err)
	out := make(map[int64]row, len(nodes))
	for _, n := range nodes {
		r := row{Left: n.Left, Right: n.Right, Depth: n.Depth}
		if n.ParentID != nil {
			r.Parent = *n.ParentID
		}
		out[n.ID] = r
	}
	return out
}

func reload(t testing.TB, e *Engine, nodes ...*Node) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, e.Store().Reload(context.Background(), n))
	}
}

func requireValid(t testing.TB, e *Engine) {
	t.Helper()
	rep, err := e.Check(context.Background())
	require.NoError(t, err)
	require.True(t, rep.OK(), "invariants violated: %v", rep.Violations)
}

func bounds(n *Node) string {
	return fmt.Sprintf("(%d,%d)", n.Left, n.Right)
}

func nameOf(n *Node) string {
	switch v := n.Attrs["name"].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
