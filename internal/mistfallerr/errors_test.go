package mistfallerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessagesNameTheViolatedRule(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"schema with column", &SchemaError{Table: "users", Column: "id", Reason: "missing primary key"}, "schema error: users.id: missing primary key"},
		{"schema without column", &SchemaError{Table: "users", Reason: "no tables declared"}, "schema error: users: no tables declared"},
		{"primary key", &PrimaryKeyViolation{Table: "users", Key: 1}, "primary key violation: users: key 1 already exists"},
		{"not null", &NotNullViolation{Table: "users", Column: "name"}, "not-null violation: users.name"},
		{"foreign key", &ForeignKeyViolation{Table: "todos", Column: "ownerId", TargetTable: "users", Key: 2}, "foreign key violation: todos.ownerId: no row in users with key 2"},
		{"restrict deletion", &RestrictDeletionViolation{Table: "users", Key: 1, DependentTable: "todos", DependentColumn: "ownerId"}, "restrict deletion violation: users key 1 is referenced by todos.ownerId"},
		{"undeclared table", &UndeclaredTableError{Table: "todos"}, "undeclared table: todos is not part of this transaction's declared tables"},
		{"empty transaction", &EmptyTransactionError{}, "empty transaction: at least one table must be declared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBackendErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := &BackendError{Op: "open", Cause: cause}

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestErrorsDistinguishableWithErrorsAs(t *testing.T) {
	var err error = &ForeignKeyViolation{Table: "todos", Column: "ownerId", TargetTable: "users", Key: 2}

	var fk *ForeignKeyViolation
	if !errors.As(err, &fk) {
		t.Fatalf("expected errors.As to match ForeignKeyViolation")
	}

	var pk *PrimaryKeyViolation
	if errors.As(err, &pk) {
		t.Fatalf("did not expect errors.As to match PrimaryKeyViolation")
	}
}
