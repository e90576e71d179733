package aggregate

import (
	"context"
	"strings"
)

// FolderCache stores folder embeddings between runs, keyed by folder path.
// The vault root is stored under the empty path.
type FolderCache interface {
	// Get returns the cached embedding for path. A miss is (nil, false, nil).
	Get(ctx context.Context, path string) ([]float32, bool, error)

	// Put stores the embedding for path, replacing any previous value.
	Put(ctx context.Context, path string, embedding []float32) error
}

// Scoped namespaces every key of cache with scope. Runs that build their
// tree from different file sets (for example with the inbox excluded) use
// different scopes so they never read each other's folder embeddings.
func Scoped(cache FolderCache, scope string) FolderCache {
	if cache == nil || scope == "" {
		return cache
	}
	return &scopedCache{inner: cache, scope: scope}
}

type scopedCache struct {
	inner FolderCache
	scope string
}

func (s *scopedCache) key(path string) string {
	return s.scope + "::" + path
}

func (s *scopedCache) Get(ctx context.Context, path string) ([]float32, bool, error) {
	return s.inner.Get(ctx, s.key(path))
}

func (s *scopedCache) Put(ctx context.Context, path string, embedding []float32) error {
	return s.inner.Put(ctx, s.key(path), embedding)
}

// ScopeFor derives a cache scope from a set of excluded folder prefixes.
// No exclusions means the unscoped, whole-vault cache.
func ScopeFor(excludePrefixes []string) string {
	if len(excludePrefixes) == 0 {
		return ""
	}
	return "exclude=" + strings.Join(excludePrefixes, ",")
}
