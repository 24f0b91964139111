package nestedset

import "fmt"

// Column names a tree column symbolically; stores map it to the configured
// column name of the hosted table.
type Column int

const (
	ColID Column = iota
	ColParent
	ColLeft
	ColRight
	ColDepth
)

func (c Column) String() string {
	switch c {
	case ColID:
		return "id"
	case ColParent:
		return "parent"
	case ColLeft:
		return "left"
	case ColRight:
		return "right"
	case ColDepth:
		return "depth"
	default:
		return fmt.Sprintf("column(%d)", int(c))
	}
}

// Columns configures the table and column names of a hosted entity type.
type Columns struct {
	Table  string
	ID     string
	Parent string
	Left   string
	Right  string
	Depth  string

	// Payload columns are loaded into Node.Attrs and written by Insert/Save.
	Payload []string
}

// DefaultColumns returns the conventional column layout for table.
func DefaultColumns(table string) Columns {
	return Columns{
		Table:  table,
		ID:     "id",
		Parent: "parent_id",
		Left:   "lft",
		Right:  "rgt",
		Depth:  "depth",
	}
}

// Name resolves a symbolic column to its configured name.
func (c Columns) Name(col Column) string {
	switch col {
	case ColID:
		return c.ID
	case ColParent:
		return c.Parent
	case ColLeft:
		return c.Left
	case ColRight:
		return c.Right
	case ColDepth:
		return c.Depth
	default:
		panic(fmt.Sprintf("unknown column %d", int(col)))
	}
}

func (c Columns) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidArgument)
	}
	for _, col := range []Column{ColID, ColParent, ColLeft, ColRight, ColDepth} {
		if c.Name(col) == "" {
			return fmt.Errorf("%w: no column name configured for %s", ErrInvalidArgument, col)
		}
	}
	return nil
}

// Direction of an ordering.
type Direction int

const (
	Asc Direction = iota
	Desc
)

type Order struct {
	Col Column
	Dir Direction
}

// ByLeft is the preorder ordering every tree read uses.
var ByLeft = Order{Col: ColLeft, Dir: Asc}
