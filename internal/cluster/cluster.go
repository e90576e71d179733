// Package cluster groups notes by embedding similarity using average-linkage
// agglomerative clustering over cosine distance.
//
// No cluster count is given up front. Clusters keep merging while the
// closest pair is within the distance threshold.
package cluster

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// DefaultDistanceThreshold is the cosine distance below which inbox notes
// are considered the same topic.
const DefaultDistanceThreshold = 0.3

// sameDirection is the distance below which two vectors count as identical.
// Rounding in the cosine of a vector with itself leaves about 1e-16.
const sameDirection = 1e-12

// FileCluster is a group of notes with a shared centroid.
type FileCluster struct {
	ID    int
	Files []string
	// Centroid is the normalized mean of the members' unit vectors.
	Centroid []float32
	// Coherence is the mean member-to-centroid similarity; 1 for singletons.
	Coherence float64
	// Label is empty until a Labeler fills it.
	Label string
}

// Size returns the number of member files.
func (c FileCluster) Size() int { return len(c.Files) }

// Options tunes the engine.
type Options struct {
	// Workers bounds the goroutines computing the distance matrix.
	// Values below 2 compute it serially.
	Workers int
}

// Engine clusters file embeddings.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opts: opts, logger: logger}
}

// ValidateThreshold rejects distance thresholds outside the cosine
// distance range [0, 2].
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 2 {
		return vecmath.InvalidParameter("distance_threshold", t, "must be within [0, 2]")
	}
	return nil
}

// Cluster partitions entries into clusters. distanceThreshold is a cosine
// distance in [0, 2]; 0 merges only identical directions and 2 merges
// everything into one cluster.
//
// The result is independent of input order: entries are sorted by path,
// equal-distance pairs merge lowest index first, clusters are ordered by
// size (largest first) then by first member path, and IDs are assigned in
// that order.
func (e *Engine) Cluster(ctx context.Context, entries []foldertree.FileEntry, distanceThreshold float64) ([]FileCluster, error) {
	if err := ValidateThreshold(distanceThreshold); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []FileCluster{}, nil
	}

	sorted := make([]foldertree.FileEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	dim := len(sorted[0].Embedding)
	unit := make([][]float32, len(sorted))
	for i, f := range sorted {
		if i > 0 && f.Path == sorted[i-1].Path {
			return nil, vecmath.InvalidParameter("entries", f.Path, "duplicate path")
		}
		if len(f.Embedding) != dim {
			return nil, fmt.Errorf("%w: %q has %d dimensions, want %d",
				vecmath.ErrDimensionMismatch, f.Path, len(f.Embedding), dim)
		}
		unit[i] = vecmath.Normalize(f.Embedding)
	}

	dist, err := e.distanceMatrix(ctx, unit)
	if err != nil {
		return nil, err
	}

	groups, merges := averageLinkage(dist, distanceThreshold)
	e.logger.Debug("agglomerative clustering finished",
		zap.Int("files", len(sorted)),
		zap.Int("merges", merges),
		zap.Int("clusters", len(groups)),
		zap.Float64("distance_threshold", distanceThreshold))

	clusters := make([]FileCluster, 0, len(groups))
	for _, members := range groups {
		c, err := buildCluster(sorted, unit, members)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if len(clusters[i].Files) != len(clusters[j].Files) {
			return len(clusters[i].Files) > len(clusters[j].Files)
		}
		return clusters[i].Files[0] < clusters[j].Files[0]
	})
	for i := range clusters {
		clusters[i].ID = i
	}
	return clusters, nil
}

// distanceMatrix returns the symmetric matrix of pairwise cosine distances.
// Rows are split across workers; each worker writes only its own rows.
func (e *Engine) distanceMatrix(ctx context.Context, unit [][]float32) ([][]float64, error) {
	n := len(unit)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}

	fill := func(i int) error {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d, err := vecmath.CosineDistance(unit[i], unit[j])
			if err != nil {
				return err
			}
			if d < sameDirection {
				d = 0
			}
			dist[i][j] = d
		}
		return nil
	}

	if e.opts.Workers < 2 || n < 2 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := fill(i); err != nil {
				return nil, err
			}
		}
		return dist, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fill(i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dist, nil
}

// averageLinkage merges clusters while the smallest average-linkage
// distance is at most threshold. It returns the member indices of each
// final cluster and the number of merges performed. dist is overwritten.
func averageLinkage(dist [][]float64, threshold float64) ([][]int, int) {
	n := len(dist)
	members := make([][]int, n)
	active := make([]bool, n)
	for i := range members {
		members[i] = []int{i}
		active[i] = true
	}

	merges := 0
	for {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					best, bi, bj = dist[i][j], i, j
				}
			}
		}
		if bi < 0 || best > threshold {
			break
		}

		// Lance-Williams update for average linkage; the merged cluster
		// takes slot bi.
		ni, nj := float64(len(members[bi])), float64(len(members[bj]))
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			d := (ni*dist[bi][k] + nj*dist[bj][k]) / (ni + nj)
			dist[bi][k], dist[k][bi] = d, d
		}
		members[bi] = append(members[bi], members[bj]...)
		members[bj] = nil
		active[bj] = false
		merges++
	}

	var groups [][]int
	for i := 0; i < n; i++ {
		if active[i] {
			sort.Ints(members[i])
			groups = append(groups, members[i])
		}
	}
	return groups, merges
}

func buildCluster(entries []foldertree.FileEntry, unit [][]float32, members []int) (FileCluster, error) {
	files := make([]string, len(members))
	vecs := make([][]float32, len(members))
	for i, m := range members {
		files[i] = entries[m].Path
		vecs[i] = unit[m]
	}

	centroid, err := vecmath.NormalizedMean(vecs)
	if err != nil {
		return FileCluster{}, err
	}

	coherence := 1.0
	if len(members) > 1 {
		var sum float64
		for _, v := range vecs {
			s, err := vecmath.Similarity(v, centroid)
			if err != nil {
				return FileCluster{}, err
			}
			sum += s
		}
		coherence = sum / float64(len(vecs))
	}

	return FileCluster{
		Files:     files,
		Centroid:  centroid,
		Coherence: coherence,
	}, nil
}
