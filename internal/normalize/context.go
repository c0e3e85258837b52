// Package normalize implements the adapter-agnostic normalization pipeline
// described in spec.md §4.2: every insert and update funnels through here,
// with a backend-supplied Context performing the only two operations that
// differ between backends (identity allocation and foreign-key lookup).
package normalize

import "context"

// Context is the Go shape of spec.md's NormalizationContext: a per-operation
// object supplying identity allocation and foreign-key existence lookup so
// the pipeline itself stays backend-agnostic. The memory backend implements
// this by incrementing an in-process counter under its own mutex; the
// persistent backend implements it by reading/writing the __seq bucket
// inside the same bbolt transaction as the write (spec.md §4.5).
type Context interface {
	// AllocateIdentity returns the next identity value for table. Fails if
	// the backend cannot allocate (e.g. the backing transaction aborted).
	AllocateIdentity(ctx context.Context, table string) (int64, error)

	// EnsureForeignKey confirms a row with primary key value exists in
	// targetTable. A nil/absent value is a no-op: "no-op if value is
	// absent/null; otherwise confirms existence or fails" (spec.md §4.2).
	EnsureForeignKey(ctx context.Context, sourceTable, sourceColumn, targetTable, targetColumn string, value any) error
}
