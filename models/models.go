package models

import (
	"time"

	"github.com/bluesky-social/nestedset/nestedset"
)

// Category is a row of a category tree kept as a nested set. Lft, Rgt,
// Depth and ParentID are owned by the nestedset engine.
type Category struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	ParentID  *int64 `gorm:"index"`
	Lft       int64  `gorm:"index"`
	Rgt       int64  `gorm:"index"`
	Depth     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CategoryColumns describes the categories table to the nestedset engine.
func CategoryColumns() nestedset.Columns {
	cols := nestedset.DefaultColumns("categories")
	cols.Payload = []string{"name"}
	return cols
}

// Node returns the tree view of the category. The same Node must be passed
// through every lifecycle callback of one save.
func (c *Category) Node() *nestedset.Node {
	n := &nestedset.Node{
		ID:    c.ID,
		Left:  c.Lft,
		Right: c.Rgt,
		Depth: c.Depth,
		Attrs: map[string]any{"name": c.Name},
	}
	if c.ParentID != nil {
		n.ParentID = nestedset.Int64(*c.ParentID)
	}
	return n
}

// SetTree copies the tree columns of n onto the category.
func (c *Category) SetTree(n *nestedset.Node) {
	c.ID = n.ID
	c.Lft = n.Left
	c.Rgt = n.Right
	c.Depth = n.Depth
	c.ParentID = nil
	if n.ParentID != nil {
		c.ParentID = nestedset.Int64(*n.ParentID)
	}
}

// CategoryFromNode builds a category from a node read through the engine.
func CategoryFromNode(n *nestedset.Node) *Category {
	c := &Category{}
	c.SetTree(n)
	switch v := n.Attrs["name"].(type) {
	case string:
		c.Name = v
	case []byte:
		c.Name = string(v)
	}
	return c
}
