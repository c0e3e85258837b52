// Package mistfall provides a minimal public API for embedding the runtime
// in another Go program without reaching into internal/.
//
// Most callers should use the client package directly; this package exists
// for the common case of wanting the core types and the Connect entry point
// from a single, short import.
package mistfall

import (
	"github.com/mistfall/mistfall/client"
	"github.com/mistfall/mistfall/internal/schema"
	"github.com/mistfall/mistfall/internal/storage"
	"github.com/mistfall/mistfall/internal/storage/factory"
)

// Core types for declaring and querying a schema.
type (
	Schema        = schema.Schema
	TableSpec     = schema.TableSpec
	ColumnSpec    = schema.ColumnSpec
	ReferenceSpec = schema.ReferenceSpec
	IndexSpec     = schema.IndexSpec
	Kind          = schema.Kind
)

// Column kinds, re-exported for callers declaring a schema without an
// internal/schema import.
const (
	KindInteger          = schema.KindInteger
	KindBigInteger       = schema.KindBigInteger
	KindFloat            = schema.KindFloat
	KindFixedDecimal     = schema.KindFixedDecimal
	KindUnboundedString  = schema.KindUnboundedString
	KindBoundedString    = schema.KindBoundedString
	KindEnumeratedString = schema.KindEnumeratedString
	KindBoolean          = schema.KindBoolean
	KindTimestamp        = schema.KindTimestamp
	KindStructuredValue  = schema.KindStructuredValue
)

// Adapter names accepted by client.WithAdapter.
const (
	AdapterAuto       = factory.AdapterAuto
	AdapterMemory     = factory.AdapterMemory
	AdapterPersistent = factory.AdapterPersistent
)

// Row, SelectOptions and Session are the shapes every CRUD call and
// transaction body reads and returns.
type (
	Row           = storage.Row
	SelectOptions = storage.SelectOptions
	Session       = storage.Session
)

// Client is the connected handle returned by Connect.
type Client = client.Client

// Option configures Connect. See client.WithDBName, client.WithAdapter,
// client.WithLogger and client.WithBoltOptions.
type Option = client.Option

// BuildSchema resolves a set of table declarations into a Schema, computing
// its deterministic signature.
func BuildSchema(opts schema.Options, tables []TableSpec) (*Schema, error) {
	return schema.Build(opts, tables)
}

// Connect opens a Client against the given schema, selecting a storage
// backend per the supplied options (default: auto).
func Connect(sch *Schema, opts ...Option) (*Client, error) {
	return client.Connect(sch, opts...)
}
