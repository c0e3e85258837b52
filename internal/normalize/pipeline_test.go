package normalize

import (
	gocontext "context"
	"errors"
	"testing"

	"github.com/mistfall/mistfall/internal/mistfallerr"
	"github.com/mistfall/mistfall/internal/schema"
)

// fakeContext is a minimal in-test Context: identities increment per table,
// foreign keys are checked against a caller-supplied membership set.
type fakeContext struct {
	seq      map[string]int64
	existing map[string]map[any]bool
	failFK   bool
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		seq:      make(map[string]int64),
		existing: make(map[string]map[any]bool),
	}
}

func (f *fakeContext) AllocateIdentity(_ gocontext.Context, table string) (int64, error) {
	f.seq[table]++
	return f.seq[table], nil
}

func (f *fakeContext) EnsureForeignKey(_ gocontext.Context, _, _, targetTable, _ string, value any) error {
	if value == nil {
		return nil
	}
	if f.failFK {
		return &mistfallerr.ForeignKeyViolation{TargetTable: targetTable, Key: value}
	}
	if rows, ok := f.existing[targetTable]; ok && rows[value] {
		return nil
	}
	return &mistfallerr.ForeignKeyViolation{TargetTable: targetTable, Key: value}
}

func usersTable(t *testing.T) *schema.Table {
	t.Helper()
	s, err := schema.Build(schema.Options{Name: "app"}, []schema.TableSpec{
		{
			Name: "users",
			Columns: []schema.ColumnSpec{
				{Name: "id", Kind: schema.KindInteger, PrimaryKey: true, Identity: true},
				{Name: "name", Kind: schema.KindUnboundedString, NotNull: true},
				{Name: "role", Kind: schema.KindEnumeratedString, Default: "a"},
			},
		},
	})
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	return s.Table("users")
}

func TestInsertAllocatesIdentityAndDefault(t *testing.T) {
	nc := newFakeContext()
	table := usersTable(t)

	r1, err := Insert(gocontext.Background(), nc, table, schema.Row{"name": "x"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	r2, err := Insert(gocontext.Background(), nc, table, schema.Row{"name": "y"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if r1["id"] != int64(1) || r1["role"] != "a" {
		t.Fatalf("unexpected row 1: %+v", r1)
	}
	if r2["id"] != int64(2) || r2["role"] != "a" {
		t.Fatalf("unexpected row 2: %+v", r2)
	}
}

func TestInsertNotNullViolation(t *testing.T) {
	nc := newFakeContext()
	table := usersTable(t)

	_, err := Insert(gocontext.Background(), nc, table, schema.Row{})
	var violation *mistfallerr.NotNullViolation
	if !errors.As(err, &violation) || violation.Column != "name" {
		t.Fatalf("expected NotNullViolation on name, got %v", err)
	}
}

func todosTable(t *testing.T) *schema.Table {
	t.Helper()
	s, err := schema.Build(schema.Options{Name: "app"}, []schema.TableSpec{
		{
			Name: "users",
			Columns: []schema.ColumnSpec{
				{Name: "id", Kind: schema.KindInteger, PrimaryKey: true, Identity: true},
			},
		},
		{
			Name: "todos",
			Columns: []schema.ColumnSpec{
				{Name: "id", Kind: schema.KindInteger, PrimaryKey: true, Identity: true},
				{Name: "title", Kind: schema.KindUnboundedString, NotNull: true},
				{Name: "ownerId", Kind: schema.KindInteger, NotNull: true, References: &schema.ReferenceSpec{Table: "users", Column: "id"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	return s.Table("todos")
}

func TestInsertForeignKeyViolation(t *testing.T) {
	nc := newFakeContext()
	nc.existing["users"] = map[any]bool{int64(1): true}
	table := todosTable(t)

	_, err := Insert(gocontext.Background(), nc, table, schema.Row{"title": "t", "ownerId": int64(2)})
	var violation *mistfallerr.ForeignKeyViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected ForeignKeyViolation, got %v", err)
	}

	row, err := Insert(gocontext.Background(), nc, table, schema.Row{"title": "t", "ownerId": int64(1)})
	if err != nil {
		t.Fatalf("expected insert with valid FK to succeed, got %v", err)
	}
	if row["title"] != "t" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func onUpdateTable(t *testing.T) *schema.Table {
	t.Helper()
	s, err := schema.Build(schema.Options{Name: "app"}, []schema.TableSpec{
		{
			Name: "items",
			Columns: []schema.ColumnSpec{
				{Name: "id", Kind: schema.KindInteger, PrimaryKey: true, Identity: true},
				{Name: "name", Kind: schema.KindUnboundedString},
				{
					Name:        "updatedAt",
					Kind:        schema.KindInteger,
					DefaultFunc: func() any { return 100 },
					OnUpdateFunc: func(prev any) any {
						return prev.(int) + 1
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	return s.Table("items")
}

func TestUpdateOnUpdateHookFiresOnlyWhenPatchOmitsColumn(t *testing.T) {
	// Scenario 5 from spec.md §8.
	nc := newFakeContext()
	table := onUpdateTable(t)

	row, err := Insert(gocontext.Background(), nc, table, schema.Row{})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row["updatedAt"] != 100 {
		t.Fatalf("expected updatedAt=100 after insert, got %v", row["updatedAt"])
	}

	updated, err := Update(gocontext.Background(), nc, table, row, schema.Row{"name": "q"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["updatedAt"] != 101 {
		t.Fatalf("expected onUpdate hook to bump updatedAt to 101, got %v", updated["updatedAt"])
	}

	updated2, err := Update(gocontext.Background(), nc, table, updated, schema.Row{"updatedAt": 555})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated2["updatedAt"] != 555 {
		t.Fatalf("expected explicit patch to win over onUpdate hook, got %v", updated2["updatedAt"])
	}
}

func TestUpdateDoesNotReallocateIdentity(t *testing.T) {
	nc := newFakeContext()
	table := usersTable(t)

	row, err := Insert(gocontext.Background(), nc, table, schema.Row{"name": "x"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	updated, err := Update(gocontext.Background(), nc, table, row, schema.Row{"name": "z"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["id"] != row["id"] {
		t.Fatalf("expected identity to stay %v, got %v", row["id"], updated["id"])
	}
}

func TestUpdateForeignKeyRecheckedEvenWhenNotPatched(t *testing.T) {
	nc := newFakeContext()
	table := todosTable(t)
	nc.existing["users"] = map[any]bool{int64(1): true}

	row, err := Insert(gocontext.Background(), nc, table, schema.Row{"title": "t", "ownerId": int64(1)})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	delete(nc.existing["users"], int64(1))
	_, err = Update(gocontext.Background(), nc, table, row, schema.Row{"title": "t2"})
	var violation *mistfallerr.ForeignKeyViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected ForeignKeyViolation on re-check, got %v", err)
	}
}

func TestInsertComputedIndexMaterializesField(t *testing.T) {
	nc := newFakeContext()
	s, err := schema.Build(schema.Options{Name: "app"}, []schema.TableSpec{
		{
			Name: "items",
			Columns: []schema.ColumnSpec{
				{Name: "id", Kind: schema.KindInteger, PrimaryKey: true, Identity: true},
				{Name: "first", Kind: schema.KindUnboundedString},
				{Name: "last", Kind: schema.KindUnboundedString},
			},
			Indexes: []schema.IndexSpec{
				{
					Name:          "full_name",
					ComputedField: "fullName",
					ComputedExpr: func(r schema.Row) any {
						return r["first"].(string) + " " + r["last"].(string)
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	table := s.Table("items")

	row, err := Insert(gocontext.Background(), nc, table, schema.Row{"first": "Ada", "last": "Lovelace"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row["fullName"] != "Ada Lovelace" {
		t.Fatalf("expected computed index field to be materialized, got %v", row["fullName"])
	}
}
