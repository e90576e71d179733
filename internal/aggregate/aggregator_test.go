package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

type mapCache struct {
	mu     sync.Mutex
	data   map[string][]float32
	getErr error
	puts   int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]float32)}
}

func (m *mapCache) Get(_ context.Context, path string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[path]
	return v, ok, nil
}

func (m *mapCache) Put(_ context.Context, path string, emb []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = vecmath.Clone(emb)
	m.puts++
	return nil
}

func buildTree(t *testing.T, emb map[string][]float32) *foldertree.Tree {
	t.Helper()
	tree, err := foldertree.Build(emb, foldertree.BuildOptions{})
	require.NoError(t, err)
	return tree
}

func lookup(t *testing.T, tree *foldertree.Tree, p string) *foldertree.FolderNode {
	t.Helper()
	id, ok := tree.Lookup(p)
	require.True(t, ok, "folder %q not found", p)
	return tree.Node(id)
}

func TestComputeFolderEmbeddings_SubfolderCountsOnce(t *testing.T) {
	// Folder A holds one file [1,0] and subfolder B with files [0,1] and
	// [0,1]. A's embedding is the mean of [1,0] and B's unit embedding
	// [0,1], not of all three files.
	tree := buildTree(t, map[string][]float32{
		"A/x.md":   {1, 0},
		"A/B/y.md": {0, 1},
		"A/B/z.md": {0, 1},
	})

	stats, err := New(nil, Options{}, nil).ComputeFolderEmbeddings(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Computed)

	b := lookup(t, tree, "A/B")
	assert.InDeltaSlice(t, []float32{0, 1}, b.Embedding, 1e-6)

	a := lookup(t, tree, "A")
	assert.InDeltaSlice(t, []float32{0.70710677, 0.70710677}, a.Embedding, 1e-6)
}

func TestComputeFolderEmbeddings_AllUnitNorm(t *testing.T) {
	tree := buildTree(t, map[string][]float32{
		"a/1.md":     {3, 1, 0},
		"a/b/2.md":   {0, 2, 9},
		"a/b/c/3.md": {1, 1, 1},
		"d/4.md":     {-1, 0, 4},
		"top.md":     {2, 2, 2},
	})

	_, err := New(nil, Options{}, nil).ComputeFolderEmbeddings(context.Background(), tree)
	require.NoError(t, err)

	for _, id := range tree.PostOrder() {
		node := tree.Node(id)
		require.NotNil(t, node.Embedding, "folder %q", node.Path)
		assert.InDelta(t, 1.0, vecmath.Norm(node.Embedding), 1e-5, "folder %q", node.Path)
	}
}

func TestComputeFolderEmbeddings_ParallelMatchesSerial(t *testing.T) {
	emb := make(map[string][]float32)
	dirs := []string{"a", "a/b", "a/b/c", "d", "d/e", "f", "f/g/h"}
	for i, d := range dirs {
		for j := 0; j < 4; j++ {
			emb[d+"/n"+string(rune('0'+j))+".md"] = []float32{float32(i + 1), float32(j + 1), float32((i * j) % 3)}
		}
	}

	serial := buildTree(t, emb)
	_, err := New(nil, Options{}, nil).ComputeFolderEmbeddings(context.Background(), serial)
	require.NoError(t, err)

	parallel := buildTree(t, emb)
	_, err = New(nil, Options{Workers: 4}, nil).ComputeFolderEmbeddings(context.Background(), parallel)
	require.NoError(t, err)

	assert.Equal(t, serial.FolderEmbeddings(), parallel.FolderEmbeddings())
}

func TestComputeFolderEmbeddings_CacheRoundTrip(t *testing.T) {
	emb := map[string][]float32{
		"A/x.md":   {1, 0},
		"A/B/y.md": {0, 1},
	}
	cache := newMapCache()

	first := buildTree(t, emb)
	stats, err := New(cache, Options{UseCache: true}, nil).ComputeFolderEmbeddings(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Computed)
	assert.Equal(t, 3, stats.CacheWrites)
	assert.Contains(t, cache.data, "")

	second := buildTree(t, emb)
	stats, err = New(cache, Options{UseCache: true}, nil).ComputeFolderEmbeddings(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CacheHits)
	assert.Zero(t, stats.Computed)
	for path, want := range first.FolderEmbeddings() {
		assert.InDeltaSlice(t, want, second.FolderEmbeddings()[path], 1e-6, "folder %q", path)
	}
}

func TestComputeFolderEmbeddings_RecomputeIgnoresCache(t *testing.T) {
	emb := map[string][]float32{"A/x.md": {1, 0}}
	cache := newMapCache()
	cache.data["A"] = []float32{0, 1}

	tree := buildTree(t, emb)
	stats, err := New(cache, Options{UseCache: false}, nil).ComputeFolderEmbeddings(context.Background(), tree)
	require.NoError(t, err)

	assert.Zero(t, stats.CacheHits)
	assert.InDeltaSlice(t, []float32{1, 0}, lookup(t, tree, "A").Embedding, 1e-6)
	assert.InDeltaSlice(t, []float32{1, 0}, cache.data["A"], 1e-6, "recomputed value is written back")
}

func TestComputeFolderEmbeddings_StaleCacheDimension(t *testing.T) {
	cache := newMapCache()
	cache.data["A"] = []float32{0, 1, 0}

	tree := buildTree(t, map[string][]float32{"A/x.md": {1, 0}})
	stats, err := New(cache, Options{UseCache: true, ReadOnlyCache: true}, zap.NewNop()).
		ComputeFolderEmbeddings(context.Background(), tree)
	require.NoError(t, err)

	assert.Zero(t, stats.CacheHits)
	assert.Zero(t, cache.puts)
	assert.InDeltaSlice(t, []float32{1, 0}, lookup(t, tree, "A").Embedding, 1e-6)
}

func TestComputeFolderEmbeddings_CacheErrorDegradesToMiss(t *testing.T) {
	cache := newMapCache()
	cache.getErr = errors.New("disk on fire")

	tree := buildTree(t, map[string][]float32{"A/x.md": {1, 0}})
	stats, err := New(cache, Options{UseCache: true}, nil).ComputeFolderEmbeddings(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CacheErrors)
	assert.Equal(t, 2, stats.Computed)
}

func TestComputeFolderEmbeddings_EmptyTreeFailsLoudly(t *testing.T) {
	tree := buildTree(t, nil)
	_, err := New(nil, Options{}, nil).ComputeFolderEmbeddings(context.Background(), tree)
	assert.ErrorIs(t, err, vecmath.ErrEmptyInput)
}

func TestComputeFolderEmbeddings_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree := buildTree(t, map[string][]float32{"A/x.md": {1, 0}})
	_, err := New(nil, Options{Workers: 2}, nil).ComputeFolderEmbeddings(ctx, tree)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoped(t *testing.T) {
	inner := newMapCache()
	scoped := Scoped(inner, ScopeFor([]string{"Inbox"}))

	require.NoError(t, scoped.Put(context.Background(), "A", []float32{1}))
	assert.Contains(t, inner.data, "exclude=Inbox::A")

	_, ok, err := inner.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Same(t, inner, Scoped(inner, ScopeFor(nil)))
}
