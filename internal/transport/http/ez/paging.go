package ez

import (
	"fmt"
	"strings"

	"neurolab/internal/store"
	"neurolab/internal/store/search"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageQuery is embedded by every search input.
type PageQuery struct {
	Offset  int    `form:"offset"`
	Limit   int    `form:"limit"`
	OrderBy string `form:"order_by"`
	Desc    bool   `form:"desc"`
}

// Paging applies offset, clamped limit and ordering to q.
func Paging[T store.Entity](q search.Query[T], p PageQuery) search.Query[T] {
	limit := p.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return q.Page(max(p.Offset, 0), limit).OrderBy(p.OrderBy, search.Dir(p.Desc))
}

// IDs is the body of bulk endpoints.
type IDs struct {
	IDs []int64 `json:"ids" binding:"required,min=1,max=500"`
}

// RemoveIDs soft-deletes every listed row, answering not found when any id is
// missing or already deleted.
func RemoveIDs[T store.Entity](tx *store.Tx, ids []int64) error {
	gone, err := store.Unavailable[T](tx, ids)
	if err != nil {
		return err
	}
	if len(gone) > 0 {
		return NotFound(fmt.Sprintf("not found: %s", joinIDs(gone)))
	}
	return store.SoftDeleteIDs[T](tx, ids)
}

// Require answers not found unless every id names a live row.
func Require[T store.Entity](tx *store.Tx, what string, ids ...int64) error {
	gone, err := store.Unavailable[T](tx, ids)
	if err != nil {
		return err
	}
	if len(gone) > 0 {
		return NotFound(fmt.Sprintf("%s not found: %s", what, joinIDs(gone)))
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
