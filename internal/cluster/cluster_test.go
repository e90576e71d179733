package cluster

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

func angle(deg float64) []float32 {
	r := deg * math.Pi / 180
	return []float32{float32(math.Cos(r)), float32(math.Sin(r))}
}

func twoTopics() []foldertree.FileEntry {
	return []foldertree.FileEntry{
		{Path: "Inbox/cooking-pasta.md", Embedding: angle(0)},
		{Path: "Inbox/cooking-rice.md", Embedding: angle(5)},
		{Path: "Inbox/cooking-bread.md", Embedding: angle(10)},
		{Path: "Inbox/golang-errors.md", Embedding: angle(90)},
		{Path: "Inbox/golang-tests.md", Embedding: angle(95)},
	}
}

func paths(clusters []FileCluster) [][]string {
	out := make([][]string, len(clusters))
	for i, c := range clusters {
		out[i] = c.Files
	}
	return out
}

func TestCluster_SeparatesTopics(t *testing.T) {
	clusters, err := NewEngine(Options{}, nil).Cluster(context.Background(), twoTopics(), 0.3)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	assert.Equal(t, 0, clusters[0].ID)
	assert.Equal(t, []string{
		"Inbox/cooking-bread.md", "Inbox/cooking-pasta.md", "Inbox/cooking-rice.md",
	}, clusters[0].Files)
	assert.Equal(t, 1, clusters[1].ID)
	assert.Equal(t, []string{"Inbox/golang-errors.md", "Inbox/golang-tests.md"}, clusters[1].Files)

	for _, c := range clusters {
		assert.InDelta(t, 1.0, vecmath.Norm(c.Centroid), 1e-5)
		assert.Greater(t, c.Coherence, 0.99)
		assert.LessOrEqual(t, c.Coherence, 1.0+1e-9)
	}
}

func TestCluster_ThresholdExtremes(t *testing.T) {
	engine := NewEngine(Options{}, nil)

	all, err := engine.Cluster(context.Background(), twoTopics(), 2)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Files, 5)

	entries := append(twoTopics(), foldertree.FileEntry{Path: "Inbox/pasta-copy.md", Embedding: angle(0)})
	strict, err := engine.Cluster(context.Background(), entries, 0)
	require.NoError(t, err)
	require.Len(t, strict, 5)
	assert.Equal(t, []string{"Inbox/cooking-pasta.md", "Inbox/pasta-copy.md"}, strict[0].Files)
}

func TestCluster_ZeroThresholdMergesDuplicates(t *testing.T) {
	dup := []float32{0.3, 0.7, 0.11, 0.93}
	entries := []foldertree.FileEntry{
		{Path: "a.md", Embedding: dup},
		{Path: "b.md", Embedding: append([]float32(nil), dup...)},
		{Path: "c.md", Embedding: []float32{1, 0, 0, 0}},
		{Path: "d.md", Embedding: []float32{0.3, 0.7, 0.11, 0.94}},
	}

	clusters, err := NewEngine(Options{}, nil).Cluster(context.Background(), entries, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.md", "b.md"}, {"c.md"}, {"d.md"}}, paths(clusters))
}

func TestCluster_AverageLinkage(t *testing.T) {
	// A-B are at distance 0.181 and B-C at 0.293, both within the
	// threshold, but A-C are at 0.826. Average linkage puts C at 0.56 from
	// {A, B}, so C stays alone where single linkage would chain it in.
	entries := []foldertree.FileEntry{
		{Path: "a.md", Embedding: angle(0)},
		{Path: "b.md", Embedding: angle(35)},
		{Path: "c.md", Embedding: angle(80)},
	}

	clusters, err := NewEngine(Options{}, nil).Cluster(context.Background(), entries, 0.3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.md", "b.md"}, {"c.md"}}, paths(clusters))
}

func TestCluster_OrderInvariant(t *testing.T) {
	engine := NewEngine(Options{}, nil)
	want, err := engine.Cluster(context.Background(), twoTopics(), 0.3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		entries := twoTopics()
		rng.Shuffle(len(entries), func(a, b int) { entries[a], entries[b] = entries[b], entries[a] })

		got, err := engine.Cluster(context.Background(), entries, 0.3)
		require.NoError(t, err)
		assert.Equal(t, paths(want), paths(got))
	}
}

func TestCluster_ParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var entries []foldertree.FileEntry
	for i := 0; i < 40; i++ {
		v := make([]float32, 8)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		entries = append(entries, foldertree.FileEntry{Path: string(rune('a'+i%26)) + string(rune('0'+i/26)) + ".md", Embedding: v})
	}

	serial, err := NewEngine(Options{}, nil).Cluster(context.Background(), entries, 0.8)
	require.NoError(t, err)
	parallel, err := NewEngine(Options{Workers: 4}, nil).Cluster(context.Background(), entries, 0.8)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestCluster_SingletonCoherence(t *testing.T) {
	clusters, err := NewEngine(Options{}, nil).Cluster(context.Background(), []foldertree.FileEntry{
		{Path: "only.md", Embedding: []float32{3, 4}},
	}, 0.3)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 1.0, clusters[0].Coherence)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, clusters[0].Centroid, 1e-6)
}

func TestCluster_Errors(t *testing.T) {
	engine := NewEngine(Options{}, nil)

	for _, threshold := range []float64{-0.1, 2.5, math.NaN()} {
		_, err := engine.Cluster(context.Background(), twoTopics(), threshold)
		assert.ErrorIs(t, err, vecmath.ErrInvalidParameter)
	}

	_, err := engine.Cluster(context.Background(), []foldertree.FileEntry{
		{Path: "a.md", Embedding: []float32{1, 0}},
		{Path: "a.md", Embedding: []float32{0, 1}},
	}, 0.3)
	assert.ErrorIs(t, err, vecmath.ErrInvalidParameter)

	_, err = engine.Cluster(context.Background(), []foldertree.FileEntry{
		{Path: "a.md", Embedding: []float32{1, 0}},
		{Path: "b.md", Embedding: []float32{0, 1, 0}},
	}, 0.3)
	assert.ErrorIs(t, err, vecmath.ErrDimensionMismatch)
}

func TestCluster_Empty(t *testing.T) {
	clusters, err := NewEngine(Options{}, nil).Cluster(context.Background(), nil, 0.3)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]FileCluster{
		{Files: []string{"a", "b", "c"}, Coherence: 0.9},
		{Files: []string{"d"}, Coherence: 1.0},
		{Files: []string{"e", "f"}, Coherence: 0.8},
	})

	assert.Equal(t, 3, stats.TotalClusters)
	assert.Equal(t, 6, stats.TotalFiles)
	assert.Equal(t, 3, stats.Largest)
	assert.Equal(t, 1, stats.Smallest)
	assert.Equal(t, 1, stats.Singletons)
	assert.InDelta(t, 2.0, stats.AvgSize, 1e-12)
	assert.InDelta(t, 0.9, stats.AvgCoherence, 1e-12)

	assert.Equal(t, Stats{}, Summarize(nil))
}
