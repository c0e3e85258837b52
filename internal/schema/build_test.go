package schema

import (
	"errors"
	"testing"

	"github.com/mistfall/mistfall/internal/mistfallerr"
)

func usersAndTodosSpecs() []TableSpec {
	return []TableSpec{
		{
			Name: "users",
			Columns: []ColumnSpec{
				{Name: "id", Kind: KindInteger, PrimaryKey: true, Identity: true},
				{Name: "name", Kind: KindUnboundedString, NotNull: true},
			},
		},
		{
			Name: "todos",
			Columns: []ColumnSpec{
				{Name: "id", Kind: KindInteger, PrimaryKey: true, Identity: true},
				{Name: "title", Kind: KindUnboundedString, NotNull: true},
				{Name: "ownerId", Kind: KindInteger, NotNull: true, References: &ReferenceSpec{Table: "users", Column: "id", OnDelete: OnDeleteRestrict}},
			},
		},
	}
}

func TestBuildResolvesForeignKeysAndReverseDeps(t *testing.T) {
	s, err := Build(Options{Name: "app"}, usersAndTodosSpecs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	todos := s.Table("todos")
	ownerID := todos.Column("ownerId")
	if ownerID.ForeignKey == nil {
		t.Fatalf("expected ownerId to have resolved foreign key metadata")
	}
	if ownerID.ForeignKey.TargetTable != "users" || ownerID.ForeignKey.TargetColumn != "id" {
		t.Fatalf("unexpected foreign key target: %+v", ownerID.ForeignKey)
	}

	deps := s.ReverseDeps["users"]
	if len(deps) != 1 || deps[0].SourceTable != "todos" || deps[0].SourceColumn != "ownerId" {
		t.Fatalf("unexpected reverse deps: %+v", deps)
	}
}

func TestBuildDefaultsVersionAndNamespace(t *testing.T) {
	s, err := Build(Options{Name: "app"}, usersAndTodosSpecs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.Version != 1 {
		t.Fatalf("got version %d, want 1", s.Version)
	}
	if s.Namespace != "app" {
		t.Fatalf("got namespace %q, want %q", s.Namespace, "app")
	}
}

func TestBuildRejectsMissingPrimaryKey(t *testing.T) {
	_, err := Build(Options{Name: "app"}, []TableSpec{
		{Name: "users", Columns: []ColumnSpec{{Name: "name", Kind: KindUnboundedString}}},
	})
	var schemaErr *mistfallerr.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestBuildRejectsDuplicatePrimaryKey(t *testing.T) {
	_, err := Build(Options{Name: "app"}, []TableSpec{
		{Name: "users", Columns: []ColumnSpec{
			{Name: "id", Kind: KindInteger, PrimaryKey: true},
			{Name: "uuid", Kind: KindUnboundedString, PrimaryKey: true},
		}},
	})
	var schemaErr *mistfallerr.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestBuildRejectsUnresolvableReference(t *testing.T) {
	_, err := Build(Options{Name: "app"}, []TableSpec{
		{Name: "todos", Columns: []ColumnSpec{
			{Name: "id", Kind: KindInteger, PrimaryKey: true},
			{Name: "ownerId", Kind: KindInteger, References: &ReferenceSpec{Table: "users", Column: "id"}},
		}},
	})
	var schemaErr *mistfallerr.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError naming the offending column, got %v", err)
	}
}

func TestSignatureDeterministicAndOrderIndependent(t *testing.T) {
	s1, err := Build(Options{Name: "app"}, usersAndTodosSpecs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reversed := usersAndTodosSpecs()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	s2, err := Build(Options{Name: "app"}, reversed)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s1.Signature != s2.Signature {
		t.Fatalf("signature depends on declaration order: %s vs %s", s1.Signature, s2.Signature)
	}
	if len(s1.ShortSignature) != 10 {
		t.Fatalf("expected short signature length 10, got %d", len(s1.ShortSignature))
	}
}

func TestSignatureChangesWithSchemaShape(t *testing.T) {
	s1, _ := Build(Options{Name: "app"}, usersAndTodosSpecs())

	specs := usersAndTodosSpecs()
	specs[0].Columns = append(specs[0].Columns, ColumnSpec{Name: "email", Kind: KindUnboundedString})
	s2, _ := Build(Options{Name: "app"}, specs)

	if s1.Signature == s2.Signature {
		t.Fatalf("expected signature to change when a column is added")
	}
}
