package kvdb

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	metaBucketName = "__meta"
	seqBucketName  = "__seq"
	metaSchemaKey  = "schema"
)

func indexBucketName(name string) string {
	return "idx__" + name
}

// encodeKey renders a primary-key or index-key value as order-preserving
// bytes. Integers are biased so bbolt's native byte-lexicographic key
// ordering matches numeric ordering (including negatives); strings are
// stored as their raw bytes. float64 is accepted alongside int64 because a
// row decoded back out of a bucket always carries JSON-numeric (float64)
// values, while a value allocated fresh in the same transaction is int64 —
// both must encode identically when they denote the same integer.
func encodeKey(v any) ([]byte, error) {
	switch val := v.(type) {
	case int64:
		return encodeIntKey(val), nil
	case int:
		return encodeIntKey(int64(val)), nil
	case float64:
		return encodeIntKey(int64(val)), nil
	case string:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", v)
	}
}

func encodeIntKey(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)+uint64(math.MaxInt64)+1)
	return buf
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
