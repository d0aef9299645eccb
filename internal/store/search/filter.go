package search

import (
	"strings"

	"gorm.io/gorm/clause"
)

// Filter is one optional predicate. The zero Filter constrains nothing, so an
// absent request parameter can be passed through unconditionally.
type Filter struct {
	column string
	build  func(col clause.Column) clause.Expression
}

func (f Filter) empty() bool { return f.build == nil }

// Equals matches column = *v; a nil v is a no-op.
func Equals[V any](column string, v *V) Filter {
	if v == nil {
		return Filter{}
	}
	val := *v
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.Eq{Column: col, Value: val}
	}}
}

// Value matches column = v unconditionally.
func Value(column string, v any) Filter {
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.Eq{Column: col, Value: v}
	}}
}

// Contains is a case-insensitive substring match; blank s is a no-op.
func Contains(column, s string) Filter {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}
	}
	pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.Expr{SQL: "LOWER(?) LIKE ? ESCAPE '!'", Vars: []any{col, pattern}}
	}}
}

// AtLeast matches column >= *v; a nil v is a no-op.
func AtLeast[V any](column string, v *V) Filter {
	if v == nil {
		return Filter{}
	}
	val := *v
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.Gte{Column: col, Value: val}
	}}
}

// AtMost matches column <= *v; a nil v is a no-op.
func AtMost[V any](column string, v *V) Filter {
	if v == nil {
		return Filter{}
	}
	val := *v
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.Lte{Column: col, Value: val}
	}}
}

// IsNull matches column IS NULL.
func IsNull(column string) Filter {
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.Eq{Column: col, Value: nil}
	}}
}

// In matches column IN (vs...); an empty vs is a no-op.
func In[V any](column string, vs []V) Filter {
	if len(vs) == 0 {
		return Filter{}
	}
	vals := make([]any, len(vs))
	for i, v := range vs {
		vals[i] = v
	}
	return Filter{column: column, build: func(col clause.Column) clause.Expression {
		return clause.IN{Column: col, Values: vals}
	}}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }
