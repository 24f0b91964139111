package nestedset

// Descendants selects the subtree below ref, and ref itself when includeSelf.
func Descendants(ref *Node, includeSelf bool) Predicate {
	p := And{
		Cmp{Col: ColLeft, Op: OpGte, Value: ref.Left},
		Cmp{Col: ColLeft, Op: OpLt, Value: ref.Right},
	}
	if !includeSelf {
		p = append(p, WithoutSelf(ref))
	}
	return p
}

// Ancestors selects every node whose interval contains ref's.
func Ancestors(ref *Node, includeSelf bool) Predicate {
	p := And{
		Cmp{Col: ColLeft, Op: OpLte, Value: ref.Left},
		Cmp{Col: ColRight, Op: OpGte, Value: ref.Right},
	}
	if !includeSelf {
		p = append(p, WithoutSelf(ref))
	}
	return p
}

func Siblings(ref *Node, includeSelf bool) Predicate {
	if includeSelf {
		return ParentIs(ref.ParentID)
	}
	return And{ParentIs(ref.ParentID), WithoutSelf(ref)}
}

// Leaves selects the leaf descendants of ref.
func Leaves(ref *Node) Predicate {
	return And{Descendants(ref, false), Span{Width: 1}}
}

func Children(ref *Node) Predicate {
	return ParentIs(Int64(ref.ID))
}

func Roots() Predicate {
	return Null{Col: ColParent}
}

// RootOf selects the root of the tree containing ref.
func RootOf(ref *Node) Predicate {
	return And{Ancestors(ref, true), Roots()}
}

// LeftSibling selects the sibling immediately before ref.
func LeftSibling(ref *Node) Predicate {
	return And{Siblings(ref, false), Cmp{Col: ColRight, Op: OpEq, Value: ref.Left - 1}}
}

// RightSibling selects the sibling immediately after ref.
func RightSibling(ref *Node) Predicate {
	return And{Siblings(ref, false), Cmp{Col: ColLeft, Op: OpEq, Value: ref.Right + 1}}
}

// WithoutSelf excludes ref from a result set.
func WithoutSelf(ref *Node) Predicate {
	return Cmp{Col: ColID, Op: OpNe, Value: ref.ID}
}

// WithoutRoot excludes root nodes.
func WithoutRoot() Predicate {
	return Null{Col: ColParent, Not: true}
}

// WithoutNode excludes n; it is WithoutSelf under the name callers composing
// queries about some other node expect.
func WithoutNode(n *Node) Predicate {
	return WithoutSelf(n)
}
