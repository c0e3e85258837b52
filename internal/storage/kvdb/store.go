// Package kvdb implements spec.md §4.5's Persistent Backend on top of an
// embedded ordered key/value engine with bucket-scoped ACID transactions —
// the idiomatic Go analog of the browser-native versioned object-store
// engine the original runtime targets. Grounded on the pack's cuemby-warren
// BoltDB storage architecture document (bucket-per-entity, db.Update/
// db.View transactions, automatic rollback on error), wired to
// go.etcd.io/bbolt.
package kvdb

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"go.etcd.io/bbolt"

	"github.com/mistfall/mistfall/internal/mistfallerr"
	"github.com/mistfall/mistfall/internal/schema"
	"github.com/mistfall/mistfall/internal/storage"
)

// Store wraps one *bbolt.DB. Buckets: one per declared table
// (<namespace>__<table>), plus the reserved __meta and __seq buckets.
type Store struct {
	db     *bbolt.DB
	schema *schema.Schema
	logger *slog.Logger
}

// Option configures a Store at Open time.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	boltOptions *bbolt.Options
	openRetries uint64
}

// WithLogger sets the structured logger used for debug/warn records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBoltOptions overrides the *bbolt.Options passed to bbolt.Open (e.g.
// Timeout, ReadOnly, NoSync).
func WithBoltOptions(bo *bbolt.Options) Option {
	return func(o *options) {
		o.boltOptions = bo
	}
}

// WithOpenRetries bounds how many times Open retries a transient open
// failure (bbolt's advisory file lock rejecting a second writer) using
// exponential backoff before giving up.
func WithOpenRetries(n uint64) Option {
	return func(o *options) {
		o.openRetries = n
	}
}

// Open opens (and upgrades, if needed) a bbolt-backed store at path for sch.
// Transient lock-contention failures on open are retried with
// exponential backoff, the same resilience pattern the teacher applies to
// its own embedded-store connection paths.
func Open(path string, sch *schema.Schema, opts ...Option) (*Store, error) {
	cfg := &options{
		logger:      slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		openRetries: 3,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var db *bbolt.DB
	openOnce := func() error {
		var err error
		db, err = bbolt.Open(path, 0600, cfg.boltOptions)
		return err
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.openRetries)
	if err := backoff.Retry(openOnce, bo); err != nil {
		return nil, &mistfallerr.BackendError{Op: "open", Cause: err}
	}

	store := &Store{db: db, schema: sch, logger: cfg.logger}
	if err := store.upgrade(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Kind() string          { return "persistent" }
func (s *Store) Schema() *schema.Schema { return s.schema }

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return &mistfallerr.BackendError{Op: "close", Cause: err}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []storage.Row) ([]storage.Row, error) {
	var result []storage.Row
	err := s.db.Update(func(tx *bbolt.Tx) error {
		r, err := insertTx(ctx, tx, s.schema, table, rows)
		result = r
		return err
	})
	if err != nil {
		return nil, wrapErr("insert", err)
	}
	s.logger.Debug("kvdb insert", "table", table, "count", len(result))
	return result, nil
}

func (s *Store) Select(ctx context.Context, table string, opts storage.SelectOptions) ([]storage.Row, error) {
	var result []storage.Row
	err := s.db.View(func(tx *bbolt.Tx) error {
		r, err := selectTx(ctx, tx, s.schema, table, opts)
		result = r
		return err
	})
	if err != nil {
		return nil, wrapErr("select", err)
	}
	return result, nil
}

func (s *Store) Update(ctx context.Context, table string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	var count int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n, err := updateTx(ctx, tx, s.schema, table, where, patch)
		count = n
		return err
	})
	if err != nil {
		return 0, wrapErr("update", err)
	}
	s.logger.Debug("kvdb update", "table", table, "count", count)
	return count, nil
}

func (s *Store) Delete(ctx context.Context, table string, where func(storage.Row) bool) (int, error) {
	var count int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n, err := deleteTx(ctx, tx, s.schema, table, where)
		count = n
		return err
	})
	if err != nil {
		return 0, wrapErr("delete", err)
	}
	s.logger.Debug("kvdb delete", "table", table, "count", count)
	return count, nil
}

// Transaction opens one read-write bbolt transaction whose declared table
// set governs session scoping (spec.md §4.5, "Session scoping"): operations
// on an undeclared table fail immediately. bbolt's own rollback-on-error
// commit model is the native analog of "abort-on-error rollback", so no
// manual snapshot/restore is needed here (unlike memdb).
func (s *Store) Transaction(ctx context.Context, tables []string, fn func(context.Context, storage.Session) (any, error)) (any, error) {
	if len(tables) == 0 {
		return nil, &mistfallerr.EmptyTransactionError{}
	}

	declared := make(map[string]bool, len(tables))
	for _, t := range tables {
		declared[t] = true
	}

	var result any
	err := s.db.Update(func(tx *bbolt.Tx) error {
		sess := &session{store: s, tx: tx, declared: declared}
		r, err := fn(ctx, sess)
		result = r
		return err
	})
	if err != nil {
		s.logger.Debug("kvdb transaction rolled back", "tables", tables, "error", err)
		return nil, wrapErr("transaction", err)
	}
	return result, nil
}

// wrapErr leaves the runtime's own typed errors (schema/constraint
// violations) untouched and wraps anything else — a raw bbolt error — as a
// mistfallerr.BackendError, per spec.md §7's taxonomy.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *mistfallerr.SchemaError, *mistfallerr.PrimaryKeyViolation, *mistfallerr.NotNullViolation,
		*mistfallerr.ForeignKeyViolation, *mistfallerr.RestrictDeletionViolation,
		*mistfallerr.UndeclaredTableError, *mistfallerr.EmptyTransactionError:
		return err
	default:
		return &mistfallerr.BackendError{Op: op, Cause: err}
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
