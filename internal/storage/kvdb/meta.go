package kvdb

import "time"

// metaRecord is the record written to __meta under the "schema" key,
// mirroring spec.md §6's persistent layout: {key:'schema', version,
// signature, upgradedAt}.
type metaRecord struct {
	Key        string    `json:"key"`
	Version    int       `json:"version"`
	Signature  string    `json:"signature"`
	UpgradedAt time.Time `json:"upgradedAt"`
}
