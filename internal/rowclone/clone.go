// Package rowclone deep-clones row values at every boundary the runtime
// crosses: insert results, select results, and snapshot capture/restore in
// the memory backend, using a marshal/unmarshal JSON round trip rather than a
// dedicated deep-copy dependency the pack never reaches for. Nested maps and
// slices come back as map[string]any and []any, every number comes back as
// float64, and a time.Time comes back as its RFC 3339 string, not as a
// time.Time.
package rowclone

import "encoding/json"

// Row is a single table row keyed by column name.
type Row = map[string]any

// Clone returns a deep copy of r. A nil row clones to nil.
func Clone(r Row) (Row, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out Row
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CloneAll deep-clones every row in rows, preserving order.
func CloneAll(rows []Row) ([]Row, error) {
	out := make([]Row, len(rows))
	for i, r := range rows {
		cloned, err := Clone(r)
		if err != nil {
			return nil, err
		}
		out[i] = cloned
	}
	return out, nil
}

// Value deep-clones an arbitrary value (used for structured-value column
// literal defaults, which may be nested maps/slices rather than whole rows).
func Value(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
