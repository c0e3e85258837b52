package kvdb

import (
	"bytes"
	"context"
	"encoding/json"

	"go.etcd.io/bbolt"

	"github.com/mistfall/mistfall/internal/mistfallerr"
	"github.com/mistfall/mistfall/internal/normalize"
	"github.com/mistfall/mistfall/internal/query"
	"github.com/mistfall/mistfall/internal/rowclone"
	"github.com/mistfall/mistfall/internal/schema"
	"github.com/mistfall/mistfall/internal/storage"
)

// kvContext implements normalize.Context against one in-flight bbolt
// transaction, so identity allocation and foreign-key checks commit or
// roll back atomically with the write they belong to (spec.md §4.5).
type kvContext struct {
	tx     *bbolt.Tx
	schema *schema.Schema
}

func (c *kvContext) AllocateIdentity(_ context.Context, table string) (int64, error) {
	tbl := c.schema.Table(table)
	seqBucket := c.tx.Bucket([]byte(seqBucketName))
	name := []byte(tbl.StorageName())

	var current uint64
	if v := seqBucket.Get(name); v != nil {
		current = decodeUint64(v)
	}
	next := current + 1
	if err := seqBucket.Put(name, encodeUint64(next)); err != nil {
		return 0, err
	}
	return int64(next), nil
}

func (c *kvContext) EnsureForeignKey(_ context.Context, sourceTable, sourceColumn, targetTable, _ string, value any) error {
	targetTbl := c.schema.Table(targetTable)
	bucket := c.tx.Bucket([]byte(targetTbl.StorageName()))

	keyBytes, err := encodeKey(value)
	if err != nil {
		return &mistfallerr.ForeignKeyViolation{Table: sourceTable, Column: sourceColumn, TargetTable: targetTable, Key: value}
	}
	if bucket.Get(keyBytes) != nil {
		return nil
	}
	return &mistfallerr.ForeignKeyViolation{Table: sourceTable, Column: sourceColumn, TargetTable: targetTable, Key: value}
}

func insertTx(ctx context.Context, tx *bbolt.Tx, sch *schema.Schema, tableName string, rows []storage.Row) ([]storage.Row, error) {
	tbl := sch.Table(tableName)
	if tbl == nil {
		return nil, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	bucket := tx.Bucket([]byte(tbl.StorageName()))
	nc := &kvContext{tx: tx, schema: sch}

	results := make([]storage.Row, 0, len(rows))
	for _, r := range rows {
		normalized, err := normalize.Insert(ctx, nc, tbl, r)
		if err != nil {
			return nil, err
		}

		pk := normalized[tbl.PrimaryKey.Name]
		keyBytes, err := encodeKey(pk)
		if err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}
		if bucket.Get(keyBytes) != nil {
			return nil, &mistfallerr.PrimaryKeyViolation{Table: tableName, Key: pk}
		}

		data, err := json.Marshal(normalized)
		if err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}
		if err := bucket.Put(keyBytes, data); err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}
		if err := putIndexes(bucket, tbl, normalized, keyBytes); err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}

		cloned, err := rowclone.Clone(normalized)
		if err != nil {
			return nil, &mistfallerr.BackendError{Op: "insert", Cause: err}
		}
		results = append(results, cloned)
	}
	return results, nil
}

func selectTx(_ context.Context, tx *bbolt.Tx, sch *schema.Schema, tableName string, opts storage.SelectOptions) ([]storage.Row, error) {
	tbl := sch.Table(tableName)
	if tbl == nil {
		return nil, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	bucket := tx.Bucket([]byte(tbl.StorageName()))

	var rows []storage.Row
	c := bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v == nil {
			continue // nested index bucket, not a row
		}
		var row storage.Row
		if err := json.Unmarshal(v, &row); err != nil {
			return nil, &mistfallerr.BackendError{Op: "select", Cause: err}
		}
		rows = append(rows, row)
	}

	evaluated := query.Evaluate(rows, query.Options[storage.Row]{
		Where:   opts.Where,
		OrderBy: opts.OrderBy,
		Order:   opts.Order,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})

	out, err := rowclone.CloneAll(evaluated)
	if err != nil {
		return nil, &mistfallerr.BackendError{Op: "select", Cause: err}
	}
	return out, nil
}

func updateTx(ctx context.Context, tx *bbolt.Tx, sch *schema.Schema, tableName string, where func(storage.Row) bool, patch storage.Row) (int, error) {
	tbl := sch.Table(tableName)
	if tbl == nil {
		return 0, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	bucket := tx.Bucket([]byte(tbl.StorageName()))
	nc := &kvContext{tx: tx, schema: sch}

	type candidate struct {
		key []byte
		row storage.Row
	}
	var candidates []candidate
	c := bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v == nil {
			continue
		}
		var row storage.Row
		if err := json.Unmarshal(v, &row); err != nil {
			return 0, &mistfallerr.BackendError{Op: "update", Cause: err}
		}
		if where == nil || where(row) {
			candidates = append(candidates, candidate{key: append([]byte(nil), k...), row: row})
		}
	}

	for _, cand := range candidates {
		patched, err := normalize.Update(ctx, nc, tbl, cand.row, patch)
		if err != nil {
			return 0, err
		}
		data, err := json.Marshal(patched)
		if err != nil {
			return 0, &mistfallerr.BackendError{Op: "update", Cause: err}
		}
		if err := bucket.Put(cand.key, data); err != nil {
			return 0, &mistfallerr.BackendError{Op: "update", Cause: err}
		}
		if err := putIndexes(bucket, tbl, patched, cand.key); err != nil {
			return 0, &mistfallerr.BackendError{Op: "update", Cause: err}
		}
	}
	return len(candidates), nil
}

func deleteTx(_ context.Context, tx *bbolt.Tx, sch *schema.Schema, tableName string, where func(storage.Row) bool) (int, error) {
	tbl := sch.Table(tableName)
	if tbl == nil {
		return 0, &mistfallerr.SchemaError{Table: tableName, Reason: "unknown table"}
	}
	bucket := tx.Bucket([]byte(tbl.StorageName()))
	pkCol := tbl.PrimaryKey.Name

	type candidate struct {
		key []byte
		row storage.Row
	}
	var candidates []candidate
	c := bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v == nil {
			continue
		}
		var row storage.Row
		if err := json.Unmarshal(v, &row); err != nil {
			return 0, &mistfallerr.BackendError{Op: "delete", Cause: err}
		}
		if where == nil || where(row) {
			candidates = append(candidates, candidate{key: append([]byte(nil), k...), row: row})
		}
	}

	for _, cand := range candidates {
		for _, dep := range sch.ReverseDeps[tableName] {
			depTbl := sch.Table(dep.SourceTable)
			depBucket := tx.Bucket([]byte(depTbl.StorageName()))
			dc := depBucket.Cursor()
			for k, v := dc.First(); k != nil; k, v = dc.Next() {
				if v == nil {
					continue
				}
				var depRow storage.Row
				if err := json.Unmarshal(v, &depRow); err != nil {
					return 0, &mistfallerr.BackendError{Op: "delete", Cause: err}
				}
				if valuesEqual(depRow[dep.SourceColumn], cand.row[pkCol]) {
					return 0, &mistfallerr.RestrictDeletionViolation{
						Table:           tableName,
						Key:             cand.row[pkCol],
						DependentTable:  dep.SourceTable,
						DependentColumn: dep.SourceColumn,
					}
				}
			}
		}
	}

	for _, cand := range candidates {
		if err := removeIndexes(bucket, tbl, cand.row, cand.key); err != nil {
			return 0, &mistfallerr.BackendError{Op: "delete", Cause: err}
		}
		if err := bucket.Delete(cand.key); err != nil {
			return 0, &mistfallerr.BackendError{Op: "delete", Cause: err}
		}
	}
	return len(candidates), nil
}

// valuesEqual compares two row values that may have crossed a JSON round
// trip (and so differ as int64 vs float64 for the same integer).
func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return aok && bok && af == bf
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func putIndexes(bucket *bbolt.Bucket, tbl *schema.Table, row storage.Row, pkBytes []byte) error {
	for _, idx := range tbl.Indexes {
		idxBucket := bucket.Bucket([]byte(indexBucketName(idx.Name)))
		if idxBucket == nil {
			continue
		}
		keyBytes, err := encodeKey(row[idx.KeyColumn()])
		if err != nil {
			continue
		}
		if idx.Unique {
			// A duplicate key overwrites the existing index entry rather than
			// rejecting the write: spec.md §7's error taxonomy has no
			// unique-violation type, and the original store engine's own
			// unique-constraint error has no typed analog here either.
			if err := idxBucket.Put(keyBytes, pkBytes); err != nil {
				return err
			}
			continue
		}
		pks, err := readPKList(idxBucket, keyBytes)
		if err != nil {
			return err
		}
		if !containsKey(pks, pkBytes) {
			pks = append(pks, pkBytes)
		}
		data, err := json.Marshal(pks)
		if err != nil {
			return err
		}
		if err := idxBucket.Put(keyBytes, data); err != nil {
			return err
		}
	}
	return nil
}

func removeIndexes(bucket *bbolt.Bucket, tbl *schema.Table, row storage.Row, pkBytes []byte) error {
	for _, idx := range tbl.Indexes {
		idxBucket := bucket.Bucket([]byte(indexBucketName(idx.Name)))
		if idxBucket == nil {
			continue
		}
		keyBytes, err := encodeKey(row[idx.KeyColumn()])
		if err != nil {
			continue
		}
		if idx.Unique {
			if err := idxBucket.Delete(keyBytes); err != nil {
				return err
			}
			continue
		}
		pks, err := readPKList(idxBucket, keyBytes)
		if err != nil {
			return err
		}
		pks = removePK(pks, pkBytes)
		if len(pks) == 0 {
			if err := idxBucket.Delete(keyBytes); err != nil {
				return err
			}
			continue
		}
		data, err := json.Marshal(pks)
		if err != nil {
			return err
		}
		if err := idxBucket.Put(keyBytes, data); err != nil {
			return err
		}
	}
	return nil
}

func readPKList(idxBucket *bbolt.Bucket, keyBytes []byte) ([][]byte, error) {
	existing := idxBucket.Get(keyBytes)
	if existing == nil {
		return nil, nil
	}
	var pks [][]byte
	if err := json.Unmarshal(existing, &pks); err != nil {
		return nil, err
	}
	return pks, nil
}

func containsKey(pks [][]byte, target []byte) bool {
	for _, p := range pks {
		if bytes.Equal(p, target) {
			return true
		}
	}
	return false
}

func removePK(pks [][]byte, target []byte) [][]byte {
	out := pks[:0]
	for _, p := range pks {
		if !bytes.Equal(p, target) {
			out = append(out, p)
		}
	}
	return out
}
