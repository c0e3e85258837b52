// Package factory selects and opens a storage.Storage backend by adapter
// name, the same "small registry keyed by a backend string" shape as the
// teacher's own internal/storage/factory.New/NewWithOptions, generalized
// from the teacher's Dolt/SQLite backend set to this runtime's memdb/kvdb pair.
package factory

import (
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/mistfall/mistfall/internal/config"
	"github.com/mistfall/mistfall/internal/schema"
	"github.com/mistfall/mistfall/internal/storage"
	"github.com/mistfall/mistfall/internal/storage/kvdb"
	"github.com/mistfall/mistfall/internal/storage/memdb"
)

const (
	// AdapterAuto resolves to AdapterPersistent, falling back to
	// AdapterMemory if the persistent file cannot be opened.
	AdapterAuto = "auto"
	// AdapterMemory forces the in-process backend.
	AdapterMemory = "memory"
	// AdapterPersistent forces the bbolt-backed backend.
	AdapterPersistent = "persistent"
)

// Options configures how New opens a backend.
type Options struct {
	Logger      *slog.Logger
	BoltOptions *bbolt.Options
}

// New opens a storage.Storage for adapter against sch, resolving "auto" per
// spec: prefer the persistent backend at path, falling back to the memory
// backend (with a logged warning) if the persistent file cannot be opened —
// the closest faithful analog this runtime has to the teacher's own
// "detect from filesystem when config is ambiguous" fallback
// (GetBackendFromConfig/detectBackendFromPath).
func New(adapter, path string, sch *schema.Schema, opts Options) (storage.Storage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	switch adapter {
	case AdapterMemory:
		return memdb.New(sch, memdb.WithLogger(logger)), nil
	case AdapterPersistent:
		return openPersistent(path, sch, logger, opts)
	case AdapterAuto, "":
		store, err := openPersistent(path, sch, logger, opts)
		if err != nil {
			logger.Warn("persistent backend unavailable, falling back to memory", "path", path, "error", err)
			return memdb.New(sch, memdb.WithLogger(logger)), nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s (supported: %s, %s, %s)", adapter, AdapterAuto, AdapterMemory, AdapterPersistent)
	}
}

// NewFromConfig resolves the adapter and database path from cfg, the way the
// teacher's NewFromConfig resolves backend/path from metadata.json.
func NewFromConfig(cfg *config.Config, sch *schema.Schema, opts Options) (storage.Storage, error) {
	return New(cfg.Adapter, cfg.DatabasePath, sch, opts)
}

func openPersistent(path string, sch *schema.Schema, logger *slog.Logger, opts Options) (storage.Storage, error) {
	kvOpts := []kvdb.Option{kvdb.WithLogger(logger)}
	if opts.BoltOptions != nil {
		kvOpts = append(kvOpts, kvdb.WithBoltOptions(opts.BoltOptions))
	}
	return kvdb.Open(path, sch, kvOpts...)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
