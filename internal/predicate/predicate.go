// Package predicate provides the pure row-combinator functions spec.md §4.7
// describes: eq/neq/gt/lt/and/or, used by callers to build `where` clauses.
// They hold no state, grounded on the teacher's
// buildBoolPredicate/buildTimePredicate/compareTime closures-returning-
// closures style, generalized with Go generics over the row type.
package predicate

import "cmp"

// Predicate tests a single row, returning true when it should be retained.
type Predicate[T any] func(T) bool

// Eq returns a predicate matching rows where get(row) == value.
func Eq[T any, V comparable](get func(T) V, value V) Predicate[T] {
	return func(row T) bool {
		return get(row) == value
	}
}

// Neq returns a predicate matching rows where get(row) != value.
func Neq[T any, V comparable](get func(T) V, value V) Predicate[T] {
	return func(row T) bool {
		return get(row) != value
	}
}

// Gt returns a predicate matching rows where get(row) > value.
func Gt[T any, V cmp.Ordered](get func(T) V, value V) Predicate[T] {
	return func(row T) bool {
		return get(row) > value
	}
}

// Lt returns a predicate matching rows where get(row) < value.
func Lt[T any, V cmp.Ordered](get func(T) V, value V) Predicate[T] {
	return func(row T) bool {
		return get(row) < value
	}
}

// And returns a predicate matching rows where every given predicate matches.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(row T) bool {
		for _, p := range preds {
			if !p(row) {
				return false
			}
		}
		return true
	}
}

// Or returns a predicate matching rows where at least one given predicate matches.
func Or[T any](preds ...Predicate[T]) Predicate[T] {
	return func(row T) bool {
		for _, p := range preds {
			if p(row) {
				return true
			}
		}
		return false
	}
}
