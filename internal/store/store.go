package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	opTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_ops_total", Help: "Count of store primitive calls"},
		[]string{"op", "table"},
	)
	opFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_failures_total", Help: "Count of failed store primitive calls"},
		[]string{"op", "table"},
	)
)

func init() { prometheus.MustRegister(opTotal, opFailures) }

// Store hands out units of work over one gorm handle.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the timestamp source used for created_at/modified_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *gorm.DB, l *zap.Logger, opts ...Option) *Store {
	if l == nil {
		l = zap.NewNop()
	}
	s := &Store{db: db, log: l, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Logger() *zap.Logger { return s.log }

// Run executes fn inside one transaction. It commits once when fn returns nil
// and no primitive failed; otherwise it rolls back and returns the error.
// Hooks registered with AfterCommit run only after a successful commit.
func (s *Store) Run(ctx context.Context, fn func(tx *Tx) error) error {
	var hooks []func()
	err := s.db.WithContext(ctx).Transaction(func(g *gorm.DB) error {
		tx := &Tx{db: g, log: s.log, now: s.now}
		if err := fn(tx); err != nil {
			return err
		}
		hooks = tx.afterCommit
		return tx.err
	})
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h()
	}
	return nil
}

// Tx is the unit of work passed to every primitive.
type Tx struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
	err error

	afterCommit []func()
}

// DB exposes the transaction handle for callers composing their own queries.
func (t *Tx) DB() *gorm.DB { return t.db }

func (t *Tx) Now() time.Time { return t.now() }

func (t *Tx) Logger() *zap.Logger { return t.log }

// Failed reports the first storage failure recorded in this unit of work.
func (t *Tx) Failed() error { return t.err }

// Fail logs a storage failure, marks the unit rollback-only and returns the
// wrapped error.
func (t *Tx) Fail(op, table string, cause error, fields ...zap.Field) error {
	opFailures.WithLabelValues(op, table).Inc()
	e := &Error{Op: op, Table: table, Err: cause}
	t.log.Error("store "+op+" failed",
		append([]zap.Field{zap.String("table", table), zap.Error(cause)}, fields...)...)
	if t.err == nil {
		t.err = e
	}
	return e
}

// AfterCommit queues fn to run once the unit of work has committed. It is
// dropped on rollback.
func (t *Tx) AfterCommit(fn func()) { t.afterCommit = append(t.afterCommit, fn) }

// Observe counts one primitive call.
func (t *Tx) Observe(op, table string) { opTotal.WithLabelValues(op, table).Inc() }
