package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
)

const (
	metaBucketName = "__meta"
	seqBucketName  = "__seq"
	metaSchemaKey  = "schema"
	indexPrefix    = "idx__"
)

// metaRecord mirrors the {key, version, signature, upgradedAt} record the
// persistent backend writes to __meta when an open finds the stored record
// missing or out of date — duplicated here,
// deliberately, rather than imported: mistctl inspects a database it has no
// compiled-in schema.Schema for, so it can only read the bucket layout back
// out as plain JSON.
type metaRecord struct {
	Key        string    `json:"key"`
	Version    int       `json:"version"`
	Signature  string    `json:"signature"`
	UpgradedAt time.Time `json:"upgradedAt"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Print table names, row counts, and schema metadata for a database file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := resolveDBPath(args)
		if path == "" {
			return fmt.Errorf("no database path given (pass it as an argument, --db, or MISTCTL_DB)")
		}
		return runInspect(path)
	},
}

func runInspect(path string) error {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		printMeta(tx)
		printTables(tx)
		return nil
	})
}

func printMeta(tx *bbolt.Tx) {
	meta := tx.Bucket([]byte(metaBucketName))
	if meta == nil {
		fmt.Println("schema: (no __meta bucket found — not a mistfall database?)")
		return
	}
	raw := meta.Get([]byte(metaSchemaKey))
	if raw == nil {
		fmt.Println("schema: (no schema record stored)")
		return
	}
	var rec metaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "mistctl: malformed schema record: %v\n", err)
		return
	}
	fmt.Printf("schema signature: %s\n", rec.Signature)
	fmt.Printf("schema version:   %d\n", rec.Version)
	fmt.Printf("last upgraded:    %s\n", rec.UpgradedAt.Format(time.RFC3339))
}

func printTables(tx *bbolt.Tx) {
	var names []string
	_ = tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
		n := string(name)
		if n == metaBucketName || n == seqBucketName || strings.HasPrefix(n, indexPrefix) {
			return nil
		}
		names = append(names, n)
		return nil
	})
	sort.Strings(names)

	fmt.Println()
	fmt.Println("tables:")
	for _, name := range names {
		bucket := tx.Bucket([]byte(name))
		count := countRows(bucket)
		fmt.Printf("  %-24s %d row(s)\n", name, count)
	}
}

// countRows counts only top-level key/value pairs that hold a row, skipping
// the nested per-index buckets bbolt reports as nil values through Cursor.
func countRows(bucket *bbolt.Bucket) int {
	n := 0
	c := bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v != nil {
			n++
		}
	}
	return n
}
