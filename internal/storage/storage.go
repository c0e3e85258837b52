// Package storage defines the backend contract shared by the memory and
// persistent backends (spec.md §6, "Client contract"): the CRUD surface
// plus transaction sessions that both internal/storage/memdb and
// internal/storage/kvdb implement identically so the client facade can
// route calls to either without knowing which one it holds.
package storage

import (
	"context"

	"github.com/mistfall/mistfall/internal/schema"
)

// Row is a single table row keyed by column name.
type Row = schema.Row

// SelectOptions mirrors spec.md §6's select options: {where?, orderBy?,
// order?, limit?, offset?}.
type SelectOptions struct {
	Where   func(Row) bool
	OrderBy any
	Order   string
	Limit   int
	Offset  int
}

// CRUD is the verb set exposed identically by a Storage and by a
// transaction Session (spec.md §6: "transaction's session exposes
// insert/select/update/delete with identical contracts").
type CRUD interface {
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	Select(ctx context.Context, table string, opts SelectOptions) ([]Row, error)
	Update(ctx context.Context, table string, where func(Row) bool, patch Row) (int, error)
	Delete(ctx context.Context, table string, where func(Row) bool) (int, error)
}

// Session is the transactional handle passed to a transaction's caller
// function body (GLOSSARY "Session"): the CRUD surface scoped to a set of
// declared tables.
type Session interface {
	CRUD
}

// Storage is the backend contract: insert/select/update/delete/transaction
// plus close, per spec.md §6's client contract. Kind reports "persistent"
// or "memory".
type Storage interface {
	CRUD

	Kind() string
	Schema() *schema.Schema
	Transaction(ctx context.Context, tables []string, fn func(ctx context.Context, s Session) (any, error)) (any, error)
	Close() error
}
