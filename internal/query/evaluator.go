// Package query implements the row evaluator described in spec.md §4.3: a
// three-step pipeline (filter, stable sort, offset+limit) applied in-memory
// to an already-materialized row list. It is adapted from the teacher's
// internal/query/evaluator.go field-dispatch pattern, generalized with Go
// generics over the row type per spec.md §9's design note on dynamic
// predicates in static type systems.
package query

import (
	"fmt"
	"sort"
	"time"
)

// Options describes one evaluation request.
type Options[T any] struct {
	// Where retains rows for which it returns true. Nil retains every row.
	Where func(T) bool

	// OrderBy is either a func(T) any or a plain column name (valid only
	// when T is schema.Row). Nil leaves the rows in their input order.
	OrderBy any

	// Order is "asc" (default) or "desc".
	Order string

	// Offset is applied before Limit. Zero means no offset.
	Offset int
	// Limit caps the result length. Zero means no limit (spec.md §4.3:
	// "default = length").
	Limit int
}

// Evaluate applies opts to rows and returns the resulting slice. The input
// slice is never mutated; the returned slice is a new slice over the
// filtered/sorted elements (callers deep-clone at the storage boundary, not
// here — the evaluator itself is a pure in-memory transform).
func Evaluate[T any](rows []T, opts Options[T]) []T {
	filtered := make([]T, 0, len(rows))
	for _, row := range rows {
		if opts.Where == nil || opts.Where(row) {
			filtered = append(filtered, row)
		}
	}

	if getter, ok := resolveSelector[T](opts.OrderBy); ok {
		sort.SliceStable(filtered, func(i, j int) bool {
			return compareAny(getter(filtered[i]), getter(filtered[j])) < 0
		})
		if opts.Order == "desc" {
			reverse(filtered)
		}
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	filtered = filtered[offset:]

	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}

	return filtered
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// compareAny implements spec.md §4.3's ordering rule: equal keys preserve
// relative order (the sort itself is stable), otherwise a>b is +1, a<b is
// -1. Per spec.md §9 ("Bit-exact ordering of non-scalar keys"), callers are
// expected to supply scalar keys; non-comparable or mismatched types are
// ordered by comparing their fmt.Sprint renderings rather than panicking.
func compareAny(a, b any) int {
	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			return compareOrdered(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return compareOrdered(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return compareOrdered(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareOrdered(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return compareOrdered(boolToInt(av), boolToInt(bv))
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			if av.Equal(bv) {
				return 0
			}
			if av.After(bv) {
				return 1
			}
			return -1
		}
	}
	// Fall back to string rendering so dissimilar-but-present keys still
	// produce a total order instead of leaving the sort undefined.
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return compareOrdered(as, bs)
}

func compareOrdered[V interface {
	~int | ~int64 | ~float64 | ~string
}](a, b V) int {
	if a == b {
		return 0
	}
	if a > b {
		return 1
	}
	return -1
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
