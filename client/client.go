// Package client is the public entry point: Connect resolves a backend for a
// resolved schema and returns a Client exposing the runtime's full CRUD and
// transaction surface (spec.md §6, "Client contract"). The functional-options
// shape mirrors the teacher's own storage/factory.Options struct-of-knobs,
// expressed as options here since the surface is small and stable.
package client

import (
	"context"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/mistfall/mistfall/internal/config"
	"github.com/mistfall/mistfall/internal/schema"
	"github.com/mistfall/mistfall/internal/storage"
	"github.com/mistfall/mistfall/internal/storage/factory"
)

// Client is the runtime's public handle: a resolved schema bound to one
// storage.Storage backend.
type Client struct {
	store storage.Storage
}

// Option configures Connect.
type Option func(*settings)

type settings struct {
	dbName      string
	dbNameSet   bool
	adapter     string
	adapterSet  bool
	logger      *slog.Logger
	loggerSet   bool
	boltOptions *bbolt.Options
}

// WithDBName sets the persistent database file to name + ".db". Without it
// the file is schema.Name + ".db" (or mistfall.yaml's database_path, when
// that differs from its compiled-in default). The schema's storage
// namespace is not affected.
func WithDBName(name string) Option {
	return func(s *settings) {
		s.dbName = name
		s.dbNameSet = true
	}
}

// WithAdapter forces "memory" or "persistent" instead of the default "auto"
// resolution (prefer persistent, fall back to memory on open failure). An
// explicit WithAdapter always wins over mistfall.yaml/MISTFALL_ADAPTER.
func WithAdapter(adapter string) Option {
	return func(s *settings) {
		s.adapter = adapter
		s.adapterSet = true
	}
}

// WithLogger sets the structured logger passed down to the chosen backend,
// overriding the default logger's config-driven level (§A.1: an explicit
// logger is used exactly as given, independent of mistfall.yaml's log_level).
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
			s.loggerSet = true
		}
	}
}

// WithBoltOptions overrides the *bbolt.Options used when the persistent
// backend is opened, taking precedence over mistfall.yaml's busy_timeout
// (which otherwise becomes the default Options.Timeout).
func WithBoltOptions(bo *bbolt.Options) Option {
	return func(s *settings) { s.boltOptions = bo }
}

// Connect resolves a storage backend for sch and returns a ready Client.
// Resolution follows SPEC_FULL.md §J: an explicit WithAdapter always wins;
// otherwise 'auto' (or whatever internal/config.Load resolves from an
// optional mistfall.yaml in the working directory, layered under
// MISTFALL_ADAPTER) prefers the persistent backend, falling back to the
// in-process memory backend — logging a warning — if the persistent file
// cannot be opened (spec.md §6: "'auto' uses the persistent backend when
// the host exposes one, else memory").
func Connect(sch *schema.Schema, opts ...Option) (*Client, error) {
	cfg := &settings{}
	for _, opt := range opts {
		opt(cfg)
	}

	fileCfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}

	// Merge explicit Options on top of the resolved file/env config, then
	// hand the merged *config.Config to factory.NewFromConfig — the same
	// resolve-then-construct path the teacher's own NewFromConfig callers
	// follow, so config.Load's layering governs backend selection and the
	// bolt busy-timeout instead of just being computed and discarded.
	resolved := *fileCfg
	if resolved.IsMemoryOnly() {
		resolved.Adapter = factory.AdapterMemory
	}
	if cfg.adapterSet {
		resolved.Adapter = cfg.adapter
	}
	switch {
	case cfg.dbNameSet:
		resolved.DatabasePath = cfg.dbName + ".db"
	case resolved.DatabasePath == config.DefaultConfig().DatabasePath:
		resolved.DatabasePath = sch.Name + ".db"
	}

	logger := cfg.logger
	if !cfg.loggerSet {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: resolved.SlogLevel()}))
	}

	boltOptions := cfg.boltOptions
	if boltOptions == nil {
		boltOptions = &bbolt.Options{Timeout: resolved.BusyTimeout}
	}

	store, err := factory.NewFromConfig(&resolved, sch, factory.Options{
		Logger:      logger,
		BoltOptions: boltOptions,
	})
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

// Kind reports "persistent" or "memory".
func (c *Client) Kind() string { return c.store.Kind() }

// Schema returns the client's frozen schema.
func (c *Client) Schema() *schema.Schema { return c.store.Schema() }

// Insert normalizes and stores one or more rows, returning cloned inserted
// rows with defaults and identities applied. A single row still returns a
// slice of length 1 (spec.md §6).
func (c *Client) Insert(ctx context.Context, table string, rows ...storage.Row) ([]storage.Row, error) {
	return c.store.Insert(ctx, table, rows)
}

// Select evaluates opts against table and returns cloned matching rows.
func (c *Client) Select(ctx context.Context, table string, opts storage.SelectOptions) ([]storage.Row, error) {
	return c.store.Select(ctx, table, opts)
}

// Update normalizes patch against every row matching where, returning the
// count of rows updated.
func (c *Client) Update(ctx context.Context, table string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	return c.store.Update(ctx, table, where, patch)
}

// Delete removes every row matching where, returning the count of rows
// deleted. Delete is all-or-nothing: if any candidate row is protected by a
// restrict-deletion foreign key, no row is removed.
func (c *Client) Delete(ctx context.Context, table string, where func(storage.Row) bool) (int, error) {
	return c.store.Delete(ctx, table, where)
}

// Transaction runs fn against a session scoped to tables, committing on a
// nil error and rolling back (restoring pre-transaction state) otherwise.
func (c *Client) Transaction(ctx context.Context, tables []string, fn func(context.Context, storage.Session) (any, error)) (any, error) {
	return c.store.Transaction(ctx, tables, fn)
}

// Close releases the underlying backend's resources.
func (c *Client) Close() error { return c.store.Close() }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
