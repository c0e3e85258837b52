package normalize

import (
	gocontext "context"

	"github.com/mistfall/mistfall/internal/mistfallerr"
	"github.com/mistfall/mistfall/internal/rowclone"
	"github.com/mistfall/mistfall/internal/schema"
)

// Insert implements spec.md §4.2's insert normalization algorithm against
// table for row r. r is not mutated; the normalized row is returned.
func Insert(ctx gocontext.Context, nc Context, table *schema.Table, r schema.Row) (schema.Row, error) {
	row := make(schema.Row, len(r))
	for k, v := range r {
		row[k] = v
	}

	for _, col := range table.Columns {
		val, present := row[col.Name]
		if !present {
			switch {
			case col.Identity:
				id, err := nc.AllocateIdentity(ctx, table.Name)
				if err != nil {
					return nil, err
				}
				row[col.Name] = id
			case col.DefaultFunc != nil:
				row[col.Name] = col.DefaultFunc()
			case col.HasDefault:
				cloned, err := rowclone.Value(col.Default)
				if err != nil {
					return nil, err
				}
				row[col.Name] = cloned
			}
		}

		val, present = row[col.Name]
		if col.NotNull && (!present || val == nil) {
			return nil, &mistfallerr.NotNullViolation{Table: table.Name, Column: col.Name}
		}
	}

	for _, col := range table.Columns {
		if col.ForeignKey == nil {
			continue
		}
		value := row[col.Name]
		if value == nil {
			continue
		}
		if err := nc.EnsureForeignKey(ctx, table.Name, col.Name, col.ForeignKey.TargetTable, col.ForeignKey.TargetColumn, value); err != nil {
			return nil, err
		}
	}

	applyComputedIndexes(table, row)

	return row, nil
}

// Update implements spec.md §4.2's update normalization algorithm: patch p
// is merged over the existing row e, onUpdate hooks fire only for columns p
// does not explicitly mention, and not-null/foreign-key checks re-run over
// every column, not just the patched ones. e and p are not mutated.
func Update(ctx gocontext.Context, nc Context, table *schema.Table, e, p schema.Row) (schema.Row, error) {
	merged := make(schema.Row, len(e)+len(p))
	for k, v := range e {
		merged[k] = v
	}
	for k, v := range p {
		merged[k] = v
	}

	for _, col := range table.Columns {
		if col.OnUpdateFunc == nil {
			continue
		}
		if _, explicit := p[col.Name]; explicit {
			continue
		}
		merged[col.Name] = col.OnUpdateFunc(e[col.Name])
	}

	for _, col := range table.Columns {
		val, present := merged[col.Name]
		if col.NotNull && (!present || val == nil) {
			return nil, &mistfallerr.NotNullViolation{Table: table.Name, Column: col.Name}
		}
	}

	for _, col := range table.Columns {
		if col.ForeignKey == nil {
			continue
		}
		value := merged[col.Name]
		if value == nil {
			continue
		}
		if err := nc.EnsureForeignKey(ctx, table.Name, col.Name, col.ForeignKey.TargetTable, col.ForeignKey.TargetColumn, value); err != nil {
			return nil, err
		}
	}

	applyComputedIndexes(table, merged)

	return merged, nil
}

// applyComputedIndexes materializes every computed index's derived key onto
// the row, so the backing store can index it (spec.md §4.2 step 4,
// GLOSSARY "Computed index").
func applyComputedIndexes(table *schema.Table, row schema.Row) {
	for _, idx := range table.Indexes {
		if !idx.IsComputed() {
			continue
		}
		row[idx.ComputedField] = idx.ComputedExpr(row)
	}
}
