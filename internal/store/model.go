package store

import (
	"time"

	"gorm.io/gorm/clause"
)

// Lifecycle columns shared by every table.
const (
	ColID         = "id"
	ColCreatedAt  = "created_at"
	ColModifiedAt = "modified_at"
	ColDeleted    = "deleted"
)

// Model is embedded by every persisted entity.
// Deletion is a flag flip; rows are never physically removed by this package.
type Model struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
	ModifiedAt time.Time `gorm:"column:modified_at;not null;autoCreateTime" json:"modifiedAt"`
	Deleted    bool      `gorm:"column:deleted;not null;default:false;index" json:"deleted"`
}

func (m *Model) Lifecycle() *Model { return m }

// Entity describes a table to the core. Columns lists the queryable
// columns beyond the lifecycle ones.
type Entity interface {
	TableName() string
	Columns() []string
}

// Row is implemented by pointers to structs embedding Model.
type Row interface {
	Entity
	Lifecycle() *Model
}

// Descriptor is the column registry of one entity type.
type Descriptor struct {
	Table   string
	columns map[string]struct{}
}

func Describe(e Entity) Descriptor {
	cols := e.Columns()
	d := Descriptor{Table: e.TableName(), columns: make(map[string]struct{}, len(cols)+4)}
	for _, c := range []string{ColID, ColCreatedAt, ColModifiedAt, ColDeleted} {
		d.columns[c] = struct{}{}
	}
	for _, c := range cols {
		d.columns[c] = struct{}{}
	}
	return d
}

func (d Descriptor) Has(col string) bool {
	_, ok := d.columns[col]
	return ok
}

// Column returns the table-qualified column.
func (d Descriptor) Column(col string) clause.Column {
	return clause.Column{Table: d.Table, Name: col}
}

// Predicate is a backend-native boolean expression; predicates are ANDed.
type Predicate = clause.Expression

func Eq(col string, v any) Predicate {
	return clause.Eq{Column: clause.Column{Name: col}, Value: v}
}

func Ne(col string, v any) Predicate {
	return clause.Neq{Column: clause.Column{Name: col}, Value: v}
}

func ByID(id int64) Predicate { return Eq(ColID, id) }

func ByIDs(ids []int64) Predicate { return In(ColID, ids) }

// In matches col against a list of ids, e.g. a foreign key column.
func In(col string, ids []int64) Predicate {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return clause.IN{Column: clause.Column{Name: col}, Values: vals}
}

// Live restricts pred to rows that are not soft-deleted.
func Live(pred Predicate) Predicate { return And(pred, notDeleted()) }

func And(ps ...Predicate) Predicate { return clause.And(ps...) }

func notDeleted() Predicate { return Eq(ColDeleted, false) }

// UniqueIDs drops duplicates keeping the first occurrence order.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
