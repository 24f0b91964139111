package nestedset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// GormStore is a Store over any gorm database, addressing the hosted table
// through its configured column names. The bulk swap of a move is issued as
// a single UPDATE with CASE expressions so the database applies it to every
// row at once.
type GormStore struct {
	db   *gorm.DB
	cols Columns
}

// NewGormStore wraps db. Inserts use INSERT ... RETURNING, so the dialect
// must be postgres or sqlite 3.35+; MySQL is not supported.
func NewGormStore(db *gorm.DB, cols Columns) (*GormStore, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	return &GormStore{db: db, cols: cols}, nil
}

func (s *GormStore) Columns() Columns {
	return s.cols
}

// DB returns the handle the store issues statements on; inside Transaction
// this is the transaction.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) quote(name string) string {
	return s.db.Statement.Quote(name)
}

func (s *GormStore) col(c Column) string {
	return s.quote(s.cols.Name(c))
}

func (s *GormStore) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.cols.Table)
}

func (s *GormStore) selectList() string {
	names := []string{
		s.col(ColID),
		s.col(ColParent),
		s.col(ColLeft),
		s.col(ColRight),
		s.col(ColDepth),
	}
	for _, p := range s.cols.Payload {
		names = append(names, s.quote(p))
	}
	return strings.Join(names, ", ")
}

func (s *GormStore) orderBy(o Order) string {
	dir := "ASC"
	if o.Dir == Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, %s ASC", s.col(o.Col), dir, s.col(ColID))
}

// where renders a predicate as a SQL condition with positional arguments.
func (s *GormStore) where(p Predicate) (string, []any, error) {
	switch p := p.(type) {
	case Cmp:
		return fmt.Sprintf("%s %s ?", s.col(p.Col), p.Op), []any{p.Value}, nil
	case Between:
		return fmt.Sprintf("%s BETWEEN ? AND ?", s.col(p.Col)), []any{p.Lo, p.Hi}, nil
	case Null:
		if p.Not {
			return s.col(p.Col) + " IS NOT NULL", nil, nil
		}
		return s.col(p.Col) + " IS NULL", nil, nil
	case Span:
		return fmt.Sprintf("%s - %s = ?", s.col(ColRight), s.col(ColLeft)), []any{p.Width}, nil
	case All:
		return "1 = 1", nil, nil
	case And:
		return s.join(p, " AND ", "1 = 1")
	case Or:
		return s.join(p, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func (s *GormStore) join(ps []Predicate, sep, empty string) (string, []any, error) {
	if len(ps) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(ps))
	var args []any
	for _, p := range ps {
		cond, a, err := s.where(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+cond+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args, nil
}

// expr renders an assignment expression for column c.
func (s *GormStore) expr(c Column, e Expr) (clause string, args []any, err error) {
	col := s.col(c)
	switch e := e.(type) {
	case Set:
		if e.Value == nil {
			return "NULL", nil, nil
		}
		return "?", []any{*e.Value}, nil
	case Add:
		return col + " + ?", []any{e.Delta}, nil
	case SwapBlocks:
		b := e.Boundaries
		return fmt.Sprintf("CASE WHEN %[1]s BETWEEN ? AND ? THEN %[1]s + ? WHEN %[1]s BETWEEN ? AND ? THEN %[1]s + ? ELSE %[1]s END", col),
			[]any{b.A, b.B, b.D - b.B, b.C, b.D, b.A - b.C}, nil
	case SetParentOf:
		if e.Parent == nil {
			return fmt.Sprintf("CASE WHEN %s = ? THEN NULL ELSE %s END", s.col(ColID), col), []any{e.ID}, nil
		}
		return fmt.Sprintf("CASE WHEN %s = ? THEN ? ELSE %s END", s.col(ColID), col), []any{e.ID, *e.Parent}, nil
	default:
		return "", nil, fmt.Errorf("unsupported expression %T", e)
	}
}

func (s *GormStore) find(ctx context.Context, p Predicate, order Order, limit int) ([]*Node, error) {
	cond, args, err := s.where(p)
	if err != nil {
		return nil, err
	}

	q := s.table(ctx).Select(s.selectList()).Where(cond, args...).Order(s.orderBy(order))
	if limit > 0 {
		q = q.Limit(limit)
	}
	rows, err := q.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *GormStore) scan(rows *sql.Rows) (*Node, error) {
	var (
		n                        Node
		parent, lft, rgt, depth sql.NullInt64
	)
	dest := []any{&n.ID, &parent, &lft, &rgt, &depth}
	payload := make([]any, len(s.cols.Payload))
	for i := range payload {
		dest = append(dest, &payload[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	if parent.Valid {
		n.ParentID = Int64(parent.Int64)
	}
	n.Left, n.Right, n.Depth = lft.Int64, rgt.Int64, depth.Int64
	if len(payload) > 0 {
		n.Attrs = make(map[string]any, len(payload))
		for i, name := range s.cols.Payload {
			v := payload[i]
			// text columns may come back as raw bytes depending on the driver
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			n.Attrs[name] = v
		}
	}
	return &n, nil
}

func (s *GormStore) FetchByID(ctx context.Context, id int64) (*Node, error) {
	nodes, err := s.find(ctx, ByID(id), ByLeft, 1)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return nodes[0], nil
}

func (s *GormStore) FetchOrderedBy(ctx context.Context, order Order, limit int) ([]*Node, error) {
	return s.find(ctx, All{}, order, limit)
}

func (s *GormStore) Query(ctx context.Context, p Predicate, order Order) ([]*Node, error) {
	return s.find(ctx, p, order, 0)
}

func (s *GormStore) Update(ctx context.Context, p Predicate, set []Assignment) (int64, error) {
	cond, args, err := s.where(p)
	if err != nil {
		return 0, err
	}

	values := make(map[string]any, len(set))
	for _, a := range set {
		clause, eargs, err := s.expr(a.Col, a.Expr)
		if err != nil {
			return 0, err
		}
		values[s.cols.Name(a.Col)] = gorm.Expr(clause, eargs...)
	}

	res := s.table(ctx).Where(cond, args...).Updates(values)
	return res.RowsAffected, res.Error
}

func (s *GormStore) Delete(ctx context.Context, p Predicate) (int64, error) {
	cond, args, err := s.where(p)
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", s.quote(s.cols.Table), cond), args...)
	return res.RowsAffected, res.Error
}

func (s *GormStore) Decrement(ctx context.Context, p Predicate, col Column, amount int64) (int64, error) {
	cond, args, err := s.where(p)
	if err != nil {
		return 0, err
	}
	res := s.table(ctx).Where(cond, args...).UpdateColumn(s.cols.Name(col), gorm.Expr(s.col(col)+" - ?", amount))
	return res.RowsAffected, res.Error
}

func (s *GormStore) payloadValues(n *Node) ([]string, []any) {
	var names []string
	var vals []any
	for _, p := range s.cols.Payload {
		v, ok := n.Attrs[p]
		if !ok {
			continue
		}
		names = append(names, p)
		vals = append(vals, v)
	}
	return names, vals
}

func (s *GormStore) Insert(ctx context.Context, n *Node) error {
	names := []string{s.cols.Parent, s.cols.Left, s.cols.Right, s.cols.Depth}
	var parent any
	if n.ParentID != nil {
		parent = *n.ParentID
	}
	vals := []any{parent, n.Left, n.Right, n.Depth}
	if n.ID != 0 {
		names = append(names, s.cols.ID)
		vals = append(vals, n.ID)
	}
	pn, pv := s.payloadValues(n)
	names = append(names, pn...)
	vals = append(vals, pv...)

	quoted := make([]string, len(names))
	marks := make([]string, len(names))
	for i, name := range names {
		quoted[i] = s.quote(name)
		marks[i] = "?"
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.quote(s.cols.Table), strings.Join(quoted, ", "), strings.Join(marks, ", "), s.col(ColID))

	var id int64
	if err := s.db.WithContext(ctx).Raw(stmt, vals...).Scan(&id).Error; err != nil {
		return err
	}
	if id == 0 {
		return errors.New("insert returned no id")
	}
	n.ID = id
	return nil
}

func (s *GormStore) Save(ctx context.Context, n *Node) error {
	values := map[string]any{
		s.cols.Depth: n.Depth,
	}
	pn, pv := s.payloadValues(n)
	for i, name := range pn {
		values[name] = pv[i]
	}

	res := s.table(ctx).Where(fmt.Sprintf("%s = ?", s.col(ColID)), n.ID).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, n.ID)
	}
	return nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, cols: s.cols})
	})
}

func (s *GormStore) Reload(ctx context.Context, n *Node) error {
	fresh, err := s.FetchByID(ctx, n.ID)
	if err != nil {
		return err
	}
	n.copyTree(fresh)
	if fresh.Attrs != nil {
		n.Attrs = fresh.Attrs
	}
	return nil
}
