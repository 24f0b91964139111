// Package nestedset maintains a nested-set (modified preorder tree traversal)
// index over rows of a relational table.
//
// Every row carries a [left, right] interval in one preorder numbering shared
// by all trees of the table. A node's descendants are exactly the rows whose
// left bound falls inside its interval, so ancestor, descendant, sibling and
// leaf queries are single range predicates. The Engine keeps the numbering
// tightly packed as nodes are created, moved and deleted; each mutation is a
// single Store transaction.
package nestedset
