// Package counter allocates externally visible sequence numbers from a
// single-row-per-name table, independently of primary key generation.
package counter

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"neurolab/internal/store"
)

var (
	// ErrConflict means the counter moved between read and swap.
	ErrConflict  = errors.New("counter: concurrent allocation")
	ErrNoCounter = errors.New("counter: not initialised")
)

type Counter struct {
	Name       string    `gorm:"column:name;primaryKey;size:64"`
	NextIndex  int64     `gorm:"column:next_index;not null"`
	ModifiedAt time.Time `gorm:"column:modified_at;not null"`
}

func (Counter) TableName() string { return "index_counters" }

// Ensure seeds the named counter at start unless it already exists.
func Ensure(tx *store.Tx, name string, start int64) error {
	c := Counter{Name: name, NextIndex: start, ModifiedAt: tx.Now()}
	if err := tx.DB().Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error; err != nil {
		return tx.Fail("counter_ensure", c.TableName(), err, zap.String("name", name))
	}
	return nil
}

// Reserve returns the current value of the named counter and advances it by
// one. Losing the compare-and-swap yields ErrConflict; callers decide whether
// to retry.
func Reserve(tx *store.Tx, name string) (int64, error) {
	tx.Observe("counter_reserve", Counter{}.TableName())
	cur, err := Peek(tx, name)
	if err != nil {
		return 0, err
	}
	return swap(tx, name, cur)
}

// Peek returns the next value Reserve would hand out without advancing it.
func Peek(tx *store.Tx, name string) (int64, error) {
	var cur []int64
	if err := tx.DB().Model(&Counter{}).Where("name = ?", name).Limit(1).Pluck("next_index", &cur).Error; err != nil {
		return 0, tx.Fail("counter_read", Counter{}.TableName(), err, zap.String("name", name))
	}
	if len(cur) == 0 {
		return 0, ErrNoCounter
	}
	return cur[0], nil
}

func swap(tx *store.Tx, name string, expected int64) (int64, error) {
	res := tx.DB().Model(&Counter{}).
		Where("name = ? AND next_index = ?", name, expected).
		Updates(map[string]any{"next_index": expected + 1, "modified_at": tx.Now()})
	if res.Error != nil {
		return 0, tx.Fail("counter_swap", Counter{}.TableName(), res.Error,
			zap.String("name", name), zap.Int64("expected", expected))
	}
	if res.RowsAffected == 0 {
		tx.Logger().Warn("counter swap lost", zap.String("name", name), zap.Int64("expected", expected))
		return 0, ErrConflict
	}
	return expected, nil
}
