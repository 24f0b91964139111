package nestedset

// Predicate selects rows of the hosted table. Every predicate can evaluate
// itself against a node; SQL stores render the same tree to a WHERE clause.
type Predicate interface {
	Match(n *Node) bool
}

type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "<>"
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Cmp compares a column against a constant. A NULL parent never matches,
// as in SQL.
type Cmp struct {
	Col   Column
	Op    Op
	Value int64
}

func (c Cmp) Match(n *Node) bool {
	v, ok := n.value(c.Col)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpNe:
		return v != c.Value
	case OpLt:
		return v < c.Value
	case OpLte:
		return v <= c.Value
	case OpGt:
		return v > c.Value
	case OpGte:
		return v >= c.Value
	}
	return false
}

// Between is an inclusive range test.
type Between struct {
	Col    Column
	Lo, Hi int64
}

func (b Between) Match(n *Node) bool {
	v, ok := n.value(b.Col)
	return ok && v >= b.Lo && v <= b.Hi
}

// Null tests a column for NULL, or for NOT NULL when Not is set.
type Null struct {
	Col Column
	Not bool
}

func (p Null) Match(n *Node) bool {
	_, ok := n.value(p.Col)
	return ok == p.Not
}

// Span matches rows with right - left equal to Width.
type Span struct {
	Width int64
}

func (s Span) Match(n *Node) bool {
	return n.Right-n.Left == s.Width
}

type And []Predicate

func (a And) Match(n *Node) bool {
	for _, p := range a {
		if !p.Match(n) {
			return false
		}
	}
	return true
}

type Or []Predicate

func (o Or) Match(n *Node) bool {
	for _, p := range o {
		if p.Match(n) {
			return true
		}
	}
	return false
}

// All matches every row.
type All struct{}

func (All) Match(*Node) bool { return true }

// ParentIs matches rows whose parent is p; a nil p selects roots.
func ParentIs(p *int64) Predicate {
	if p == nil {
		return Null{Col: ColParent}
	}
	return Cmp{Col: ColParent, Op: OpEq, Value: *p}
}

func ByID(id int64) Predicate {
	return Cmp{Col: ColID, Op: OpEq, Value: id}
}

func (n *Node) value(col Column) (int64, bool) {
	switch col {
	case ColID:
		return n.ID, true
	case ColParent:
		if n.ParentID == nil {
			return 0, false
		}
		return *n.ParentID, true
	case ColLeft:
		return n.Left, true
	case ColRight:
		return n.Right, true
	case ColDepth:
		return n.Depth, true
	}
	return 0, false
}
