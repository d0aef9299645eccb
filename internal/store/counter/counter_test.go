package counter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"neurolab/internal/store"
	"neurolab/internal/testutil"
)

var ctx = context.Background()

func TestReserveAllocatesSequentially(t *testing.T) {
	st, _ := testutil.Store(t, &Counter{})

	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error {
		require.NoError(t, Ensure(tx, "subject", 1))
		require.NoError(t, Ensure(tx, "subject", 100), "seeding twice keeps the first value")
		return nil
	}))

	var got []int64
	for i := 0; i < 3; i++ {
		require.NoError(t, st.Run(ctx, func(tx *store.Tx) error {
			v, err := Reserve(tx, "subject")
			got = append(got, v)
			return err
		}))
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestReserveUnknownCounter(t *testing.T) {
	st, _ := testutil.Store(t, &Counter{})

	err := st.Run(ctx, func(tx *store.Tx) error {
		_, err := Reserve(tx, "missing")
		return err
	})
	assert.ErrorIs(t, err, ErrNoCounter)
}

func TestStaleSwapLosesRace(t *testing.T) {
	st, _ := testutil.Store(t, &Counter{})
	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error { return Ensure(tx, "subject", 7) }))

	// two callers read 7; the first swap wins, the second observes the move
	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error {
		v, err := swap(tx, "subject", 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)

		_, err = swap(tx, "subject", 7)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, tx.Failed(), "a lost swap is not a storage failure")

		v, err = Reserve(tx, "subject")
		require.NoError(t, err)
		assert.Equal(t, int64(8), v)
		return nil
	}))
}

func TestPeekDoesNotAdvance(t *testing.T) {
	st, _ := testutil.Store(t, &Counter{})
	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error {
		require.NoError(t, Ensure(tx, "subject", 3))
		for range 2 {
			v, err := Peek(tx, "subject")
			require.NoError(t, err)
			assert.Equal(t, int64(3), v)
		}
		_, err := Peek(tx, "other")
		assert.ErrorIs(t, err, ErrNoCounter)
		return nil
	}))
}

// fileStore opens a WAL database so two units of work can be open at once.
func fileStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "counter.db") + "?_journal_mode=WAL&_busy_timeout=2000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(2)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Counter{}))
	return store.New(db, zap.NewNop())
}

func TestConcurrentReservesNeverShareAnIndex(t *testing.T) {
	st := fileStore(t)
	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error { return Ensure(tx, "subject", 1) }))

	type result struct {
		v   int64
		err error
	}
	aRead, bRead, aDone := make(chan struct{}), make(chan struct{}), make(chan struct{})
	var a, b result

	go func() {
		defer close(aDone)
		a.err = st.Run(ctx, func(tx *store.Tx) error {
			cur, err := Peek(tx, "subject")
			if err != nil {
				return err
			}
			close(aRead)
			<-bRead
			a.v, err = swap(tx, "subject", cur)
			return err
		})
	}()

	b.err = st.Run(ctx, func(tx *store.Tx) error {
		<-aRead
		cur, err := Peek(tx, "subject")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), cur, "both units read before either swaps")
		close(bRead)
		<-aDone
		b.v, err = swap(tx, "subject", cur)
		return err
	})
	<-aDone

	require.NoError(t, a.err)
	assert.Equal(t, int64(1), a.v)
	require.Error(t, b.err, "the second swap on a stale read must not succeed")
	assert.Zero(t, b.v)

	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error {
		next, err := Peek(tx, "subject")
		assert.Equal(t, int64(2), next, "the counter advanced exactly once")
		return err
	}))
	require.NoError(t, st.Run(ctx, func(tx *store.Tx) error {
		v, err := Reserve(tx, "subject")
		assert.Equal(t, int64(2), v)
		return err
	}))
}
