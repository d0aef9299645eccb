// Package search builds one paginated, filtered query over a single entity
// type, optionally joined to one related entity type.
//
// Query is an immutable value: every chained call returns a modified copy,
// so a partially built query can be shared and extended safely. Soft-deleted
// rows are excluded unless IncludeDeleted(true) is set.
package search

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neurolab/internal/store"
)

var ErrSecondJoin = errors.New("search: query already has a join")

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Dir maps a "desc" request flag to a Direction.
func Dir(desc bool) Direction {
	if desc {
		return Desc
	}
	return Asc
}

// JoinOn is an equality join condition between two columns.
type JoinOn struct{ Left, Right string }

func On(left, right string) JoinOn { return JoinOn{Left: left, Right: right} }

type join struct {
	other store.Descriptor
	on    JoinOn
	outer bool
}

type order struct {
	column string
	dir    Direction
}

type Query[T store.Entity] struct {
	tx             *store.Tx
	base           store.Descriptor
	join           *join
	selects        []string
	filters        []Filter
	order          *order
	offset, limit  int
	includeDeleted bool
	err            error
}

// Result is a page of items plus the total matching count.
type Result[O any] struct {
	Total int64 `json:"total"`
	Items []O   `json:"items"`
}

func From[T store.Entity](tx *store.Tx) Query[T] {
	var zero T
	return Query[T]{tx: tx, base: store.Describe(zero)}
}

// Select overrides the default "base.*" projection. Accepted forms are
// "col", "table.col", "table.*" and any of them followed by "AS alias".
func (q Query[T]) Select(columns ...string) Query[T] {
	q.selects = append(slices.Clip(q.selects), columns...)
	return q
}

// Join adds the single related entity; outer keeps base rows without a match.
func (q Query[T]) Join(other store.Entity, on JoinOn, outer bool) Query[T] {
	if q.join != nil {
		q.err = ErrSecondJoin
		return q
	}
	q.join = &join{other: store.Describe(other), on: on, outer: outer}
	return q
}

func (q Query[T]) Where(filters ...Filter) Query[T] {
	q.filters = append(slices.Clip(q.filters), filters...)
	return q
}

func (q Query[T]) OrderBy(column string, dir Direction) Query[T] {
	if column == "" {
		return q
	}
	q.order = &order{column: column, dir: dir}
	return q
}

func (q Query[T]) Page(offset, limit int) Query[T] {
	q.offset, q.limit = max(offset, 0), limit
	return q
}

func (q Query[T]) IncludeDeleted(include bool) Query[T] {
	q.includeDeleted = include
	return q
}

func (q Query[T]) WithPaging(offset, limit int, includeDeleted bool) Query[T] {
	return q.Page(offset, limit).IncludeDeleted(includeDeleted)
}

// Err reports a construction error; terminal operations return it as well.
func (q Query[T]) Err() error {
	if q.err != nil {
		return q.err
	}
	_, err := q.apply(q.tx.DB().Session(&gorm.Session{DryRun: true, NewDB: true}), true)
	return err
}

func (q Query[T]) resolve(name string) (clause.Column, error) {
	table, col, qualified := strings.Cut(strings.TrimSpace(name), ".")
	if !qualified {
		table, col = q.base.Table, table
	}
	if table == q.base.Table && (col == "*" || q.base.Has(col)) {
		return q.base.Column(col), nil
	}
	if q.join != nil && table == q.join.other.Table && (col == "*" || q.join.other.Has(col)) {
		return q.join.other.Column(col), nil
	}
	return clause.Column{}, fmt.Errorf("%w: %s", store.ErrUnknownColumn, name)
}

func (q Query[T]) projection() ([]clause.Column, error) {
	if len(q.selects) == 0 {
		return []clause.Column{{Table: q.base.Table, Name: "*", Raw: true}}, nil
	}
	out := make([]clause.Column, 0, len(q.selects))
	for _, s := range q.selects {
		f := strings.Fields(s)
		var alias string
		switch {
		case len(f) == 3 && strings.EqualFold(f[1], "as") && isIdent(f[2]):
			alias = f[2]
		case len(f) != 1:
			return nil, fmt.Errorf("%w: %q", store.ErrUnknownColumn, s)
		}
		col, err := q.resolve(f[0])
		if err != nil {
			return nil, err
		}
		if col.Name == "*" {
			col.Raw = true
		}
		col.Alias = alias
		out = append(out, col)
	}
	return out, nil
}

// apply adds FROM/JOIN/WHERE and, when project is set, SELECT/ORDER/LIMIT.
func (q Query[T]) apply(db *gorm.DB, project bool) (*gorm.DB, error) {
	if q.err != nil {
		return nil, q.err
	}
	db = db.Model(new(T))

	var conds []clause.Expression
	if !q.includeDeleted {
		conds = append(conds, clause.Eq{Column: q.base.Column(store.ColDeleted), Value: false})
	}
	if q.join != nil {
		left, err := q.resolve(q.join.on.Left)
		if err != nil {
			return nil, err
		}
		right, err := q.resolve(q.join.on.Right)
		if err != nil {
			return nil, err
		}
		on := []clause.Expression{clause.Expr{SQL: "? = ?", Vars: []any{left, right}}}
		if !q.includeDeleted {
			on = append(on, clause.Eq{Column: q.join.other.Column(store.ColDeleted), Value: false})
		}
		typ := clause.InnerJoin
		if q.join.outer {
			typ = clause.LeftJoin
		}
		db = db.Clauses(clause.From{Joins: []clause.Join{{
			Type:  typ,
			Table: clause.Table{Name: q.join.other.Table},
			ON:    clause.Where{Exprs: on},
		}}})
	}
	for _, f := range q.filters {
		if f.empty() {
			continue
		}
		col, err := q.resolve(f.column)
		if err != nil {
			return nil, err
		}
		conds = append(conds, f.build(col))
	}
	if len(conds) > 0 {
		db = db.Clauses(clause.Where{Exprs: conds})
	}
	if !project {
		return db, nil
	}

	cols, err := q.projection()
	if err != nil {
		return nil, err
	}
	db = db.Clauses(clause.Select{Columns: cols})

	id := q.base.Column(store.ColID)
	by := []clause.OrderByColumn{{Column: id}}
	if q.order != nil {
		col, err := q.resolve(q.order.column)
		if err != nil {
			return nil, err
		}
		desc := q.order.dir == Desc
		by = []clause.OrderByColumn{{Column: col, Desc: desc}}
		if col != id {
			by = append(by, clause.OrderByColumn{Column: id, Desc: desc})
		}
	}
	db = db.Clauses(clause.OrderBy{Columns: by})

	if q.offset > 0 {
		db = db.Offset(q.offset)
	}
	if q.limit > 0 {
		db = db.Limit(q.limit)
	}
	return db, nil
}

// Count returns the number of matching rows, ignoring paging and ordering.
func (q Query[T]) Count() (int64, error) {
	db, err := q.apply(q.tx.DB(), false)
	if err != nil {
		return 0, err
	}
	q.tx.Observe("search_count", q.base.Table)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, q.tx.Fail("search_count", q.base.Table, err)
	}
	return total, nil
}

// Items runs the projected, paged query, scans each row into R and maps it.
func Items[T store.Entity, R any, O any](q Query[T], mapRow func(R) O) ([]O, error) {
	db, err := q.apply(q.tx.DB(), true)
	if err != nil {
		return nil, err
	}
	q.tx.Observe("search_items", q.base.Table)
	var rows []R
	if err := db.Find(&rows).Error; err != nil {
		return nil, q.tx.Fail("search_items", q.base.Table, err,
			zap.Int("offset", q.offset), zap.Int("limit", q.limit))
	}
	out := make([]O, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapRow(r))
	}
	return out, nil
}

// Paged combines Count and Items; the item query is skipped when nothing matches.
func Paged[T store.Entity, R any, O any](q Query[T], mapRow func(R) O) (Result[O], error) {
	total, err := q.Count()
	if err != nil {
		return Result[O]{}, err
	}
	if total == 0 {
		return Result[O]{Total: 0, Items: []O{}}, nil
	}
	items, err := Items(q, mapRow)
	if err != nil {
		return Result[O]{}, err
	}
	return Result[O]{Total: total, Items: items}, nil
}

func (q Query[T]) Items() ([]T, error) { return Items(q, identity[T]) }

func (q Query[T]) Paged() (Result[T], error) { return Paged(q, identity[T]) }

// ToSQL renders the item query without executing it.
func (q Query[T]) ToSQL() (string, error) {
	if err := q.Err(); err != nil {
		return "", err
	}
	return q.tx.DB().ToSQL(func(db *gorm.DB) *gorm.DB {
		db, _ = q.apply(db, true)
		var rows []T
		return db.Find(&rows)
	}), nil
}

func identity[T any](v T) T { return v }

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
