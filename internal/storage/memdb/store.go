// Package memdb implements spec.md §4.4's Memory Backend: the client
// contract over in-process ordered containers keyed by primary key,
// per-table identity counters, and copy-on-begin snapshots for transaction
// rollback. Grounded on the teacher's internal/storage/memory package
// (MemoryStorage struct holding maps behind sync.RWMutex), generalized from
// a single fixed "issues" table to the schema's arbitrary table set.
package memdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mistfall/mistfall/internal/mistfallerr"
	"github.com/mistfall/mistfall/internal/normalize"
	"github.com/mistfall/mistfall/internal/query"
	"github.com/mistfall/mistfall/internal/rowclone"
	"github.com/mistfall/mistfall/internal/schema"
	"github.com/mistfall/mistfall/internal/storage"
)

// Store is the memory backend's live state: one row map and one insertion-
// ordered key slice per table storage name, plus a shared sequence map.
// Go's map iteration order is randomized, so the order slice is what makes
// "select with no orderBy returns insertion order" (spec.md §9) hold.
type Store struct {
	mu sync.RWMutex

	schema *schema.Schema
	logger *slog.Logger

	tables map[string]map[any]storage.Row
	order  map[string][]any
	seq    map[string]int64
}

// Option configures a Store at construction.
type Option func(*Store)

// WithLogger sets the structured logger used for debug/warn records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Store for sch, with one empty table/sequence entry per
// declared table.
func New(sch *schema.Schema, opts ...Option) *Store {
	s := &Store{
		schema: sch,
		logger: slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		tables: make(map[string]map[any]storage.Row),
		order:  make(map[string][]any),
		seq:    make(map[string]int64),
	}
	for _, t := range sch.Tables {
		name := t.StorageName()
		s.tables[name] = make(map[any]storage.Row)
		s.order[name] = nil
		s.seq[name] = 0
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind reports the backend kind, per spec.md §6's client contract.
func (s *Store) Kind() string { return "memory" }

// Schema returns the frozen schema this store was built from.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Close is a no-op: the memory backend holds no external resource.
func (s *Store) Close() error { return nil }

func (s *Store) Insert(ctx context.Context, table string, rows []storage.Row) ([]storage.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ctx, table, rows)
}

func (s *Store) Select(ctx context.Context, table string, opts storage.SelectOptions) ([]storage.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectLocked(ctx, table, opts)
}

func (s *Store) Update(ctx context.Context, table string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(ctx, table, where, patch)
}

func (s *Store) Delete(ctx context.Context, table string, where func(storage.Row) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, table, where)
}

// Transaction takes a snapshot of every store and the full sequence map,
// runs fn with a session, and restores the snapshot if fn errors or panics
// (spec.md §4.4, "Explicit transactions").
func (s *Store) Transaction(ctx context.Context, tables []string, fn func(context.Context, storage.Session) (any, error)) (any, error) {
	if len(tables) == 0 {
		return nil, &mistfallerr.EmptyTransactionError{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotTables, snapshotOrder, snapshotSeq, err := s.snapshotLocked()
	if err != nil {
		return nil, &mistfallerr.BackendError{Op: "transaction snapshot", Cause: err}
	}

	sess := &session{store: s}

	result, err := func() (res any, runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("transaction panic: %v", r)
			}
		}()
		return fn(ctx, sess)
	}()

	if err != nil {
		s.restoreLocked(snapshotTables, snapshotOrder, snapshotSeq)
		s.logger.Debug("memdb transaction rolled back", "tables", tables, "error", err)
		return nil, err
	}

	return result, nil
}

func (s *Store) snapshotLocked() (map[string]map[any]storage.Row, map[string][]any, map[string]int64, error) {
	tablesCopy := make(map[string]map[any]storage.Row, len(s.tables))
	for name, rows := range s.tables {
		rowsCopy := make(map[any]storage.Row, len(rows))
		for pk, row := range rows {
			cloned, err := rowclone.Clone(row)
			if err != nil {
				return nil, nil, nil, err
			}
			rowsCopy[pk] = cloned
		}
		tablesCopy[name] = rowsCopy
	}

	orderCopy := make(map[string][]any, len(s.order))
	for name, keys := range s.order {
		orderCopy[name] = append([]any(nil), keys...)
	}

	seqCopy := make(map[string]int64, len(s.seq))
	for name, v := range s.seq {
		seqCopy[name] = v
	}

	return tablesCopy, orderCopy, seqCopy, nil
}

func (s *Store) restoreLocked(tables map[string]map[any]storage.Row, order map[string][]any, seq map[string]int64) {
	s.tables = tables
	s.order = order
	s.seq = seq
}

// session is the transactional handle passed to a transaction's caller
// function (spec.md §4.4: "Sessions expose the same insert/select/update/
// delete verbs. The tables argument is informational for parity with the
// persistent backend" — memdb does not reject undeclared tables).
type session struct {
	store *Store
}

func (sess *session) Insert(ctx context.Context, table string, rows []storage.Row) ([]storage.Row, error) {
	return sess.store.insertLocked(ctx, table, rows)
}

func (sess *session) Select(ctx context.Context, table string, opts storage.SelectOptions) ([]storage.Row, error) {
	return sess.store.selectLocked(ctx, table, opts)
}

func (sess *session) Update(ctx context.Context, table string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	return sess.store.updateLocked(ctx, table, where, patch)
}

func (sess *session) Delete(ctx context.Context, table string, where func(storage.Row) bool) (int, error) {
	return sess.store.deleteLocked(ctx, table, where)
}

func (s *Store) insertLocked(ctx context.Context, tableName string, rows []storage.Row) ([]storage.Row, error) {
	tbl := s.schema.Table(tableName)
	if tbl == nil {
		return nil, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	name := tbl.StorageName()
	nc := &memContext{store: s}

	results := make([]storage.Row, 0, len(rows))
	for _, r := range rows {
		normalized, err := normalize.Insert(ctx, nc, tbl, r)
		if err != nil {
			return nil, err
		}

		pk := canonicalKey(normalized[tbl.PrimaryKey.Name])
		if _, exists := s.tables[name][pk]; exists {
			return nil, &mistfallerr.PrimaryKeyViolation{Table: tableName, Key: pk}
		}

		stored, err := rowclone.Clone(normalized)
		if err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}
		s.tables[name][pk] = stored
		s.order[name] = append(s.order[name], pk)

		out, err := rowclone.Clone(normalized)
		if err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}
		results = append(results, out)
	}

	s.logger.Debug("memdb insert", "table", tableName, "count", len(results))
	return results, nil
}

func (s *Store) selectLocked(_ context.Context, tableName string, opts storage.SelectOptions) ([]storage.Row, error) {
	tbl := s.schema.Table(tableName)
	if tbl == nil {
		return nil, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	name := tbl.StorageName()

	ordered := make([]storage.Row, 0, len(s.order[name]))
	for _, pk := range s.order[name] {
		if row, ok := s.tables[name][pk]; ok {
			ordered = append(ordered, row)
		}
	}

	evaluated := query.Evaluate(ordered, query.Options[storage.Row]{
		Where:   opts.Where,
		OrderBy: opts.OrderBy,
		Order:   opts.Order,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})

	out, err := rowclone.CloneAll(evaluated)
	if err != nil {
		return nil, &mistfallerr.BackendError{Op: "select", Cause: err}
	}
	return out, nil
}

func (s *Store) updateLocked(ctx context.Context, tableName string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	tbl := s.schema.Table(tableName)
	if tbl == nil {
		return 0, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	name := tbl.StorageName()
	nc := &memContext{store: s}

	count := 0
	for _, pk := range s.order[name] {
		existing, ok := s.tables[name][pk]
		if !ok {
			continue
		}
		if where != nil && !where(existing) {
			continue
		}

		patched, err := normalize.Update(ctx, nc, tbl, existing, patch)
		if err != nil {
			return 0, err
		}

		stored, err := rowclone.Clone(patched)
		if err != nil {
			return 0, &mistfallerr.BackendError{Op: "update", Cause: err}
		}
		s.tables[name][pk] = stored
		count++
	}

	s.logger.Debug("memdb update", "table", tableName, "count", count)
	return count, nil
}

func (s *Store) deleteLocked(_ context.Context, tableName string, where func(storage.Row) bool) (int, error) {
	tbl := s.schema.Table(tableName)
	if tbl == nil {
		return 0, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	name := tbl.StorageName()
	pkCol := tbl.PrimaryKey.Name

	var candidates []any
	for _, pk := range s.order[name] {
		row, ok := s.tables[name][pk]
		if !ok {
			continue
		}
		if where == nil || where(row) {
			candidates = append(candidates, pk)
		}
	}

	for _, pk := range candidates {
		row := s.tables[name][pk]
		for _, dep := range s.schema.ReverseDeps[tableName] {
			depTable := s.schema.Table(dep.SourceTable)
			depName := depTable.StorageName()
			for _, depPK := range s.order[depName] {
				depRow, ok := s.tables[depName][depPK]
				if !ok {
					continue
				}
				if depRow[dep.SourceColumn] == row[pkCol] {
					return 0, &mistfallerr.RestrictDeletionViolation{
						Table:           tableName,
						Key:             row[pkCol],
						DependentTable:  dep.SourceTable,
						DependentColumn: dep.SourceColumn,
					}
				}
			}
		}
	}

	for _, pk := range candidates {
		delete(s.tables[name], pk)
		s.order[name] = removeKey(s.order[name], pk)
	}

	s.logger.Debug("memdb delete", "table", tableName, "count", len(candidates))
	return len(candidates), nil
}

func removeKey(keys []any, target any) []any {
	out := keys[:0]
	for _, k := range keys {
		if k != target {
			out = append(out, k)
		}
	}
	return out
}

// canonicalKey normalizes a primary- or foreign-key value to the
// representation it holds after crossing a clone boundary (int/int64 ->
// float64, matching encoding/json's untyped-number decoding), so a key
// minted fresh at identity allocation and a value arriving back from a
// previously cloned insert/select result compare equal as map keys.
func canonicalKey(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return v
	}
}

// memContext implements normalize.Context over the store's live maps. It
// assumes the caller already holds s.mu for writing.
type memContext struct {
	store *Store
}

func (c *memContext) AllocateIdentity(_ context.Context, table string) (int64, error) {
	tbl := c.store.schema.Table(table)
	name := tbl.StorageName()
	c.store.seq[name]++
	return c.store.seq[name], nil
}

func (c *memContext) EnsureForeignKey(_ context.Context, sourceTable, sourceColumn, targetTable, targetColumn string, value any) error {
	targetTbl := c.store.schema.Table(targetTable)
	name := targetTbl.StorageName()
	if _, ok := c.store.tables[name][canonicalKey(value)]; ok {
		return nil
	}
	return &mistfallerr.ForeignKeyViolation{Table: sourceTable, Column: sourceColumn, TargetTable: targetTable, Key: value}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
