package store

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

func where(ps ...Predicate) clause.Where { return clause.Where{Exprs: ps} }

// Insert writes exactly one row and returns the id assigned by storage.
// CreatedAt and ModifiedAt are stamped from the store clock when unset.
func Insert[T any, PT interface {
	*T
	Row
}](tx *Tx, row PT) (int64, error) {
	table := row.TableName()
	tx.Observe("insert", table)
	m := row.Lifecycle()
	if m.ID != 0 {
		return 0, columnError(ErrImmutableColumn, table, ColID)
	}
	stamp(m, tx.Now())

	res := tx.db.Create(row)
	if res.Error != nil {
		return 0, tx.Fail("insert", table, res.Error, zap.Any("values", row))
	}
	if res.RowsAffected != 1 {
		return 0, tx.Fail("insert", table, errRowCount(res.RowsAffected, 1), zap.Any("values", row))
	}
	return m.ID, nil
}

// BulkInsert writes every row or reports failure; a partial write dooms the
// unit of work so the caller's Run rolls it back.
func BulkInsert[T any, PT interface {
	*T
	Row
}](tx *Tx, rows []PT) error {
	if len(rows) == 0 {
		return nil
	}
	table := rows[0].TableName()
	tx.Observe("bulk_insert", table)
	now := tx.Now()
	for _, r := range rows {
		m := r.Lifecycle()
		if m.ID != 0 {
			return columnError(ErrImmutableColumn, table, ColID)
		}
		stamp(m, now)
	}

	res := tx.db.Create(rows)
	if res.Error != nil {
		return tx.Fail("bulk_insert", table, res.Error, zap.Int("rows", len(rows)))
	}
	if res.RowsAffected != int64(len(rows)) {
		return tx.Fail("bulk_insert", table, errRowCount(res.RowsAffected, int64(len(rows))))
	}
	return nil
}

func stamp(m *Model, now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ModifiedAt.Before(m.CreatedAt) {
		m.ModifiedAt = m.CreatedAt
	}
}

type updateOpts struct{ touch bool }

type UpdateOption func(*updateOpts)

// NoTouch leaves modified_at as it is.
func NoTouch() UpdateOption { return func(o *updateOpts) { o.touch = false } }

// Update applies fields to every row matching pred and returns the number of
// rows matched. Zero rows is not a failure.
func Update[T Entity](tx *Tx, pred Predicate, fields map[string]any, opts ...UpdateOption) (int64, error) {
	var zero T
	d := Describe(zero)
	o := updateOpts{touch: true}
	for _, fn := range opts {
		fn(&o)
	}
	if pred == nil {
		return 0, ErrMissingWhere
	}
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		switch {
		case k == ColID || k == ColCreatedAt:
			return 0, columnError(ErrImmutableColumn, d.Table, k)
		case !d.Has(k):
			return 0, columnError(ErrUnknownColumn, d.Table, k)
		}
		values[k] = v
	}
	if o.touch {
		values[ColModifiedAt] = tx.Now()
	}
	if len(values) == 0 {
		return 0, nil
	}
	tx.Observe("update", d.Table)

	res := tx.db.Model(new(T)).Clauses(where(pred)).Updates(values)
	if res.Error != nil {
		return 0, tx.Fail("update", d.Table, res.Error, zap.Any("values", values))
	}
	return res.RowsAffected, nil
}

// SoftDelete flags every row matching pred as deleted.
func SoftDelete[T Entity](tx *Tx, pred Predicate) (int64, error) {
	return Update[T](tx, pred, map[string]any{ColDeleted: true})
}

// SoftDeleteIDs flags every listed row as deleted. Every id must match a row.
func SoftDeleteIDs[T Entity](tx *Tx, ids []int64) error {
	ids = UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	n, err := SoftDelete[T](tx, ByIDs(ids))
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		var zero T
		return tx.Fail("soft_delete", zero.TableName(), errRowCount(n, int64(len(ids))), zap.Int64s("ids", ids))
	}
	return nil
}

// Exists probes for a row matching pred, scanning at most one row.
func Exists[T Entity](tx *Tx, pred Predicate, includeDeleted bool) (bool, error) {
	var zero T
	table := zero.TableName()
	tx.Observe("exists", table)
	ps := []Predicate{pred}
	if !includeDeleted {
		ps = append(ps, notDeleted())
	}
	var ids []int64
	if err := tx.db.Model(new(T)).Clauses(where(ps...)).Limit(1).Pluck(ColID, &ids).Error; err != nil {
		return false, tx.Fail("exists", table, err)
	}
	return len(ids) > 0, nil
}

// Get loads one row by id; a missing row yields nil without error.
func Get[T Entity](tx *Tx, id int64, includeDeleted bool) (*T, error) {
	var zero T
	table := zero.TableName()
	tx.Observe("get", table)
	ps := []Predicate{ByID(id)}
	if !includeDeleted {
		ps = append(ps, notDeleted())
	}
	var row T
	res := tx.db.Model(new(T)).Clauses(where(ps...)).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, tx.Fail("get", table, res.Error, zap.Int64("id", id))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// DeletedSubset returns the ids among the input whose rows are soft-deleted.
func DeletedSubset[T Entity](tx *Tx, ids []int64) ([]int64, error) {
	var zero T
	table := zero.TableName()
	ids = UniqueIDs(ids)
	out := []int64{}
	if len(ids) == 0 {
		return out, nil
	}
	tx.Observe("deleted_subset", table)
	if err := tx.db.Model(new(T)).Clauses(where(ByIDs(ids), Eq(ColDeleted, true))).
		Order(ColID).Pluck(ColID, &out).Error; err != nil {
		return nil, tx.Fail("deleted_subset", table, err, zap.Int64s("ids", ids))
	}
	return out, nil
}

// Unavailable returns the ids among the input that are soft-deleted or absent,
// in input order.
func Unavailable[T Entity](tx *Tx, ids []int64) ([]int64, error) {
	var zero T
	table := zero.TableName()
	ids = UniqueIDs(ids)
	out := []int64{}
	if len(ids) == 0 {
		return out, nil
	}
	tx.Observe("unavailable", table)
	var live []int64
	if err := tx.db.Model(new(T)).Clauses(where(ByIDs(ids), notDeleted())).Pluck(ColID, &live).Error; err != nil {
		return nil, tx.Fail("unavailable", table, err, zap.Int64s("ids", ids))
	}
	ok := make(map[int64]struct{}, len(live))
	for _, id := range live {
		ok[id] = struct{}{}
	}
	for _, id := range ids {
		if _, found := ok[id]; !found {
			out = append(out, id)
		}
	}
	return out, nil
}
