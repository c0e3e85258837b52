package query

import (
	"testing"

	"github.com/mistfall/mistfall/internal/schema"
)

func rowsFixture() []schema.Row {
	rows := make([]schema.Row, 0, 5)
	for i := 1; i <= 5; i++ {
		rows = append(rows, schema.Row{"id": i, "v": i % 3})
	}
	return rows
}

func TestEvaluateFilterOrderLimitOffset(t *testing.T) {
	// Scenario 6 from spec.md §8: 5 rows {id:1..5, v:id%3}.
	// where v==1 keeps ids [1,4]; orderBy id desc gives [4,1]; offset 1 gives
	// [1]; limit 1 keeps [1] -> the row with id=1.
	rows := rowsFixture()

	got := Evaluate(rows, Options[schema.Row]{
		Where: func(r schema.Row) bool { return r["v"] == 1 },
		OrderBy: "id",
		Order:   "desc",
		Offset:  1,
		Limit:   1,
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d: %+v", len(got), got)
	}
	if got[0]["id"] != 1 {
		t.Fatalf("expected id=1, got %v", got[0]["id"])
	}
}

func TestEvaluateNoOrderByPreservesInputOrder(t *testing.T) {
	rows := rowsFixture()

	got := Evaluate(rows, Options[schema.Row]{})
	for i, r := range got {
		if r["id"] != rows[i]["id"] {
			t.Fatalf("index %d: got %v, want %v", i, r["id"], rows[i]["id"])
		}
	}
}

func TestEvaluateFuncSelector(t *testing.T) {
	rows := rowsFixture()

	got := Evaluate(rows, Options[schema.Row]{
		OrderBy: func(r schema.Row) any { return r["v"] },
	})

	for i := 1; i < len(got); i++ {
		if got[i-1]["v"].(int) > got[i]["v"].(int) {
			t.Fatalf("rows not sorted ascending by v: %+v", got)
		}
	}
}

func TestEvaluateStableSortPreservesEqualKeyOrder(t *testing.T) {
	rows := []schema.Row{
		{"id": 1, "v": 0},
		{"id": 2, "v": 0},
		{"id": 3, "v": 0},
	}

	got := Evaluate(rows, Options[schema.Row]{OrderBy: "v"})
	for i, r := range got {
		if r["id"] != rows[i]["id"] {
			t.Fatalf("stable sort reordered equal keys: %+v", got)
		}
	}
}

func TestEvaluateOffsetBeyondLengthReturnsEmpty(t *testing.T) {
	rows := rowsFixture()
	got := Evaluate(rows, Options[schema.Row]{Offset: 100})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d rows", len(got))
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	rows := rowsFixture()
	opts := Options[schema.Row]{OrderBy: "id", Order: "desc"}

	first := Evaluate(rows, opts)
	second := Evaluate(rows, opts)

	for i := range first {
		if first[i]["id"] != second[i]["id"] {
			t.Fatalf("repeated evaluation produced different order")
		}
	}
}
