package query

import "github.com/mistfall/mistfall/internal/schema"

// resolveSelector turns an OrderBy value into a func(T) any key extractor.
// OrderBy may be a plain column name (valid whenever T is schema.Row, i.e.
// map[string]any) or a func(T) any supplied by the caller. This is the
// generalized form of the teacher's fixed Issue-field switch
// (internal/query/evaluator.go's Evaluator.applyComparison): instead of a
// closed set of known fields, a string selector is only meaningful for the
// one row shape the runtime actually uses.
func resolveSelector[T any](orderBy any) (func(T) any, bool) {
	switch sel := orderBy.(type) {
	case nil:
		return nil, false
	case func(T) any:
		return sel, true
	case string:
		getter := func(row T) any {
			r, ok := any(row).(schema.Row)
			if !ok {
				return nil
			}
			return r[sel]
		}
		return getter, true
	default:
		return nil, false
	}
}
