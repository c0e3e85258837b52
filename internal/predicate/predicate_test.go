package predicate

import "testing"

type sample struct {
	id int
	v  int
}

func TestEqNeq(t *testing.T) {
	byV := func(s sample) int { return s.v }

	eq := Eq(byV, 1)
	neq := Neq(byV, 1)

	if !eq(sample{v: 1}) || eq(sample{v: 2}) {
		t.Fatalf("Eq behaved unexpectedly")
	}
	if neq(sample{v: 1}) || !neq(sample{v: 2}) {
		t.Fatalf("Neq behaved unexpectedly")
	}
}

func TestGtLt(t *testing.T) {
	byID := func(s sample) int { return s.id }

	gt := Gt(byID, 2)
	lt := Lt(byID, 2)

	if !gt(sample{id: 3}) || gt(sample{id: 2}) {
		t.Fatalf("Gt behaved unexpectedly")
	}
	if !lt(sample{id: 1}) || lt(sample{id: 2}) {
		t.Fatalf("Lt behaved unexpectedly")
	}
}

func TestAndOr(t *testing.T) {
	byID := func(s sample) int { return s.id }
	byV := func(s sample) int { return s.v }

	and := And(Gt(byID, 1), Lt(byV, 5))
	or := Or(Eq(byID, 1), Eq(byV, 5))

	if !and(sample{id: 2, v: 1}) {
		t.Fatalf("expected And to match")
	}
	if and(sample{id: 0, v: 1}) {
		t.Fatalf("expected And to reject when one clause fails")
	}

	if !or(sample{id: 1, v: 0}) || !or(sample{id: 0, v: 5}) {
		t.Fatalf("expected Or to match either clause")
	}
	if or(sample{id: 0, v: 0}) {
		t.Fatalf("expected Or to reject when neither clause matches")
	}
}

func TestAndWithNoPredicatesMatchesEverything(t *testing.T) {
	and := And[sample]()
	if !and(sample{}) {
		t.Fatalf("empty And should match everything")
	}
}

func TestOrWithNoPredicatesMatchesNothing(t *testing.T) {
	or := Or[sample]()
	if or(sample{}) {
		t.Fatalf("empty Or should match nothing")
	}
}
