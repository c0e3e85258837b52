// Package idgen provides deterministic identity encoding, used by the
// schema resolver to shorten the schema signature.
package idgen

import (
	"math/big"
	"strings"
)

// EncodeBase36 renders data as a base36 string of exactly length characters:
// zero-padded on the left if short, truncated to its least-significant
// digits if long. The teacher's hash.go hand-rolls this with its own
// DivMod loop over a fixed alphabet; big.Int already performs that same
// digit extraction internally and exposes it as Text(36), so this encodes
// by delegating to the stdlib primitive instead of re-deriving it by hand.
func EncodeBase36(data []byte, length int) string {
	str := new(big.Int).SetBytes(data).Text(36)

	if len(str) < length {
		return strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		return str[len(str)-length:]
	}
	return str
}
