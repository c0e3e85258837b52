package schema

import "github.com/mistfall/mistfall/internal/rowclone"

// Row is a single table row keyed by column name.
type Row = rowclone.Row

// ReferenceSpec is the unresolved form of a foreign key, as declared by the
// caller before schema resolution: a target table/column name pair plus the
// delete behavior. Spec.md's deferred-thunk reference form is not carried
// here; references are specified by name and resolved at schema assembly
// (design note "Deferred reference resolution", option (a)).
type ReferenceSpec struct {
	Table    string
	Column   string
	OnDelete OnDelete
}

// ColumnSpec describes one column before schema resolution.
type ColumnSpec struct {
	Name       string
	Kind       Kind
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Identity   bool

	// Default is a literal default value, deep-copied on use.
	Default any
	// DefaultFunc is a zero-argument default producer, called on use.
	DefaultFunc func() any
	// OnUpdateFunc is a one-argument producer invoked with the row's current
	// value when an update patch does not explicitly mention this column.
	OnUpdateFunc func(prev any) any

	// References is the unresolved foreign key descriptor, if any.
	References *ReferenceSpec

	// EnumValues lists the declared values for KindEnumeratedString columns.
	// It is carried onto the resolved Column; writes are not checked against it.
	EnumValues []string
	// BoundedLength is the declared maximum length for KindBoundedString
	// columns. It is carried onto the resolved Column; writes are not
	// checked against it.
	BoundedLength int
}

// IndexSpec describes one index before schema resolution.
type IndexSpec struct {
	Name   string
	Unique bool

	// Columns lists the source columns for a plain index. Empty when the
	// index is computed.
	Columns []string

	// ComputedField and ComputedExpr describe a computed index: the
	// expression is evaluated against the row and its result is written
	// onto ComputedField before the row is stored.
	ComputedField string
	ComputedExpr  func(Row) any
}

// IsComputed reports whether the index derives its key via an expression.
func (i IndexSpec) IsComputed() bool {
	return i.ComputedExpr != nil
}

// KeyColumn returns the column the backing store should use as the index's
// key path: the computed field if the index is computed, else the first
// declared source column.
func (i IndexSpec) KeyColumn() string {
	if i.IsComputed() {
		return i.ComputedField
	}
	if len(i.Columns) > 0 {
		return i.Columns[0]
	}
	return ""
}

// TableSpec describes one table before schema resolution.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Indexes []IndexSpec
}

// ForeignKey is materialized foreign-key metadata, filled in during resolution.
type ForeignKey struct {
	TargetTable  string
	TargetColumn string
	OnDelete     OnDelete
}

// Column is a resolved column belonging to a table.
type Column struct {
	Name       string
	Kind       Kind
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Identity   bool
	HasDefault bool

	Default      any
	DefaultFunc  func() any
	OnUpdateFunc func(prev any) any

	ForeignKey *ForeignKey

	EnumValues    []string
	BoundedLength int
}

// Index is a resolved index belonging to a table.
type Index struct {
	Name          string
	Unique        bool
	Columns       []string
	ComputedField string
	ComputedExpr  func(Row) any
}

// IsComputed reports whether the index derives its key via an expression.
func (idx *Index) IsComputed() bool {
	return idx.ComputedExpr != nil
}

// KeyColumn returns the column the backing store uses as the index's key path.
func (idx *Index) KeyColumn() string {
	if idx.IsComputed() {
		return idx.ComputedField
	}
	if len(idx.Columns) > 0 {
		return idx.Columns[0]
	}
	return ""
}

// ReverseDependency records that SourceTable.SourceColumn references the
// table it is attached to.
type ReverseDependency struct {
	SourceTable  string
	SourceColumn string
	OnDelete     OnDelete
}

// Table is a resolved table: an ordered column set, an ordered index set,
// and a back-pointer to its schema. Immutable once built.
type Table struct {
	Name          string
	Columns       []*Column
	ColumnsByName map[string]*Column
	Indexes       []*Index
	PrimaryKey    *Column
	Schema        *Schema
}

// Column looks up a column by name, for the "table.columnName" access
// pattern described in spec.md §9 ("table-as-descriptor-and-column-bag").
func (t *Table) Column(name string) *Column {
	return t.ColumnsByName[name]
}

// StorageName returns the backing store's name for this table:
// "<namespace>__<table_name>".
func (t *Table) StorageName() string {
	return t.Schema.Namespace + "__" + t.Name
}

// Schema is a fully resolved, immutable schema: an ordered table set plus a
// derived signature.
type Schema struct {
	Name      string
	Namespace string
	Version   int

	Tables       []*Table
	TablesByName map[string]*Table

	// ReverseDeps maps a table name to every (table, column) pair that
	// references it, consulted on delete (spec.md §4.1, §4.6).
	ReverseDeps map[string][]ReverseDependency

	// Signature is a deterministic hex digest of the schema's shape, used by
	// the upgrade planner to detect drift (not to plan migrations).
	Signature string
	// ShortSignature is a 10-character base36 rendering of the first 8
	// bytes of the signature digest, for display; the runtime itself does
	// not log or compare it.
	ShortSignature string
}

// Table looks up a table by name.
func (s *Schema) Table(name string) *Table {
	return s.TablesByName[name]
}
