package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mistfall/mistfall/internal/idgen"
	"github.com/mistfall/mistfall/internal/mistfallerr"
)

// Options configures schema assembly. Version defaults to 1, Namespace
// defaults to Name.
type Options struct {
	Name      string
	Version   int
	Namespace string
}

// Build resolves a set of table descriptors into an immutable Schema. It
// performs the two-pass resolution described in spec.md §4.1: first a
// name→table lookup is built, then every column's unresolved reference is
// materialized into foreign-key metadata and folded into the reverse
// dependency map. Build failures are always *mistfallerr.SchemaError.
func Build(opts Options, tables []TableSpec) (*Schema, error) {
	if opts.Name == "" {
		return nil, &mistfallerr.SchemaError{Reason: "schema name is required"}
	}
	version := opts.Version
	if version == 0 {
		version = 1
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = opts.Name
	}

	s := &Schema{
		Name:        opts.Name,
		Namespace:   namespace,
		Version:     version,
		TablesByName: make(map[string]*Table, len(tables)),
		ReverseDeps: make(map[string][]ReverseDependency),
	}

	// Pass 1: build every table's columns/indexes and the name lookup.
	for _, spec := range tables {
		if spec.Name == "" {
			return nil, &mistfallerr.SchemaError{Reason: "table declared with empty name"}
		}
		if _, exists := s.TablesByName[spec.Name]; exists {
			return nil, &mistfallerr.SchemaError{Table: spec.Name, Reason: "duplicate table name"}
		}

		table := &Table{
			Name:          spec.Name,
			Schema:        s,
			ColumnsByName: make(map[string]*Column, len(spec.Columns)),
		}

		var primaryKey *Column
		for _, cs := range spec.Columns {
			if cs.Name == "" {
				return nil, &mistfallerr.SchemaError{Table: spec.Name, Reason: "column declared with empty name"}
			}
			if _, exists := table.ColumnsByName[cs.Name]; exists {
				return nil, &mistfallerr.SchemaError{Table: spec.Name, Column: cs.Name, Reason: "duplicate column name"}
			}

			col := &Column{
				Name:          cs.Name,
				Kind:          cs.Kind,
				NotNull:       cs.NotNull,
				PrimaryKey:    cs.PrimaryKey,
				Unique:        cs.Unique,
				Identity:      cs.Identity,
				HasDefault:    cs.Default != nil || cs.DefaultFunc != nil,
				Default:       cs.Default,
				DefaultFunc:   cs.DefaultFunc,
				OnUpdateFunc:  cs.OnUpdateFunc,
				EnumValues:    cs.EnumValues,
				BoundedLength: cs.BoundedLength,
			}

			if col.PrimaryKey {
				if primaryKey != nil {
					return nil, &mistfallerr.SchemaError{Table: spec.Name, Reason: "table declares more than one primary key column"}
				}
				primaryKey = col
			}

			table.Columns = append(table.Columns, col)
			table.ColumnsByName[col.Name] = col
		}

		if primaryKey == nil {
			return nil, &mistfallerr.SchemaError{Table: spec.Name, Reason: "table declares no primary key column"}
		}
		table.PrimaryKey = primaryKey

		for _, is := range spec.Indexes {
			if is.Name == "" {
				return nil, &mistfallerr.SchemaError{Table: spec.Name, Reason: "index declared with empty name"}
			}
			if !is.IsComputed() {
				for _, colName := range is.Columns {
					if _, ok := table.ColumnsByName[colName]; !ok {
						return nil, &mistfallerr.SchemaError{Table: spec.Name, Column: colName, Reason: "index references unknown column"}
					}
				}
			}
			table.Indexes = append(table.Indexes, &Index{
				Name:          is.Name,
				Unique:        is.Unique,
				Columns:       is.Columns,
				ComputedField: is.ComputedField,
				ComputedExpr:  is.ComputedExpr,
			})
		}

		s.Tables = append(s.Tables, table)
		s.TablesByName[table.Name] = table
	}

	// Pass 2: resolve deferred references into foreign-key metadata and the
	// reverse dependency map.
	for ti, spec := range tables {
		table := s.Tables[ti]
		for ci, cs := range spec.Columns {
			if cs.References == nil {
				continue
			}
			col := table.Columns[ci]

			target, ok := s.TablesByName[cs.References.Table]
			if !ok {
				return nil, &mistfallerr.SchemaError{Table: spec.Name, Column: col.Name, Reason: fmt.Sprintf("reference to unknown table %q", cs.References.Table)}
			}
			targetCol, ok := target.ColumnsByName[cs.References.Column]
			if !ok {
				return nil, &mistfallerr.SchemaError{Table: spec.Name, Column: col.Name, Reason: fmt.Sprintf("reference to unknown column %s.%s", cs.References.Table, cs.References.Column)}
			}

			col.ForeignKey = &ForeignKey{
				TargetTable:  target.Name,
				TargetColumn: targetCol.Name,
				OnDelete:     cs.References.OnDelete,
			}

			s.ReverseDeps[target.Name] = append(s.ReverseDeps[target.Name], ReverseDependency{
				SourceTable:  table.Name,
				SourceColumn: col.Name,
				OnDelete:     cs.References.OnDelete,
			})
		}
	}

	sig, short := computeSignature(s)
	s.Signature = sig
	s.ShortSignature = short

	return s, nil
}

// computeSignature builds the deterministic schema signature described in
// spec.md §4.1: sorted table names, each table's columns in declaration
// order, each column's kind/constraint bitmap, indexes in declaration order.
func computeSignature(s *Schema) (full, short string) {
	tableNames := make([]string, 0, len(s.Tables))
	for name := range s.TablesByName {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var b strings.Builder
	for _, name := range tableNames {
		table := s.TablesByName[name]
		b.WriteString("table:")
		b.WriteString(table.Name)
		b.WriteByte('\n')

		for _, col := range table.Columns {
			fmt.Fprintf(&b, "col:%s:%s:%s\n", col.Name, col.Kind, constraintBitmap(col))
		}
		for _, idx := range table.Indexes {
			fmt.Fprintf(&b, "idx:%s:%s:%s:%t\n", idx.Name, idx.KeyColumn(), strings.Join(idx.Columns, ","), idx.Unique)
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	full = hex.EncodeToString(sum[:])
	short = idgen.EncodeBase36(sum[:8], 10)
	return full, short
}

func constraintBitmap(col *Column) string {
	bits := 0
	if col.NotNull {
		bits |= 1
	}
	if col.PrimaryKey {
		bits |= 2
	}
	if col.Unique {
		bits |= 4
	}
	if col.Identity {
		bits |= 8
	}
	if col.HasDefault {
		bits |= 16
	}
	return strconv.Itoa(bits)
}
