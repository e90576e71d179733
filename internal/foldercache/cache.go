// Package foldercache provides persistent stores for folder embeddings.
//
// Every cache implements aggregate.FolderCache. Chromem keeps vectors in a
// chromem-go database on disk, JSONFile keeps them in a single
// dir_emb.json document and Memory keeps them for the lifetime of the
// process.
package foldercache

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/aggregate"
)

// Cache is a FolderCache that may buffer writes.
type Cache interface {
	aggregate.FolderCache
	// Flush persists buffered writes. It is a no-op for write-through caches.
	Flush(ctx context.Context) error
}

// Kind names a cache implementation.
type Kind string

const (
	KindChromem Kind = "chromem"
	KindJSON    Kind = "json"
	KindMemory  Kind = "memory"
	KindNone    Kind = "none"
)

// Config selects and locates a cache.
type Config struct {
	Kind Kind
	// Path is a directory for chromem and json caches.
	Path     string
	Compress bool
}

// jsonFileName is the document the json cache reads and writes.
const jsonFileName = "dir_emb.json"

// New opens the configured cache. KindNone returns a nil Cache.
func New(cfg Config, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case KindChromem, "":
		c, err := NewChromem(cfg.Path, cfg.Compress, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case KindJSON:
		return NewJSONFile(filepath.Join(cfg.Path, jsonFileName), logger), nil
	case KindMemory:
		return NewMemory(), nil
	case KindNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown folder cache %q", cfg.Kind)
	}
}
