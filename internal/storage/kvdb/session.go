package kvdb

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/mistfall/mistfall/internal/mistfallerr"
	"github.com/mistfall/mistfall/internal/storage"
)

// session is the transactional handle passed to a transaction's caller
// function. It rejects operations on any table outside its declared set
// (spec.md §4.5, "Session scoping").
type session struct {
	store    *Store
	tx       *bbolt.Tx
	declared map[string]bool
}

func (s *session) checkDeclared(table string) error {
	if !s.declared[table] {
		return &mistfallerr.UndeclaredTableError{Table: table}
	}
	return nil
}

func (s *session) Insert(ctx context.Context, table string, rows []storage.Row) ([]storage.Row, error) {
	if err := s.checkDeclared(table); err != nil {
		return nil, err
	}
	return insertTx(ctx, s.tx, s.store.schema, table, rows)
}

func (s *session) Select(ctx context.Context, table string, opts storage.SelectOptions) ([]storage.Row, error) {
	if err := s.checkDeclared(table); err != nil {
		return nil, err
	}
	return selectTx(ctx, s.tx, s.store.schema, table, opts)
}

func (s *session) Update(ctx context.Context, table string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	if err := s.checkDeclared(table); err != nil {
		return 0, err
	}
	return updateTx(ctx, s.tx, s.store.schema, table, where, patch)
}

func (s *session) Delete(ctx context.Context, table string, where func(storage.Row) bool) (int, error) {
	if err := s.checkDeclared(table); err != nil {
		return 0, err
	}
	return deleteTx(ctx, s.tx, s.store.schema, table, where)
}
