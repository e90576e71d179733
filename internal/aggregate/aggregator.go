// Package aggregate computes folder embeddings bottom-up over a folder tree.
//
// A folder's embedding is the normalized mean of one vector per direct file
// and one vector per direct subfolder. Subfolders count once each no matter
// how many files they hold.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// Options controls cache use and parallelism.
type Options struct {
	// UseCache reads folder embeddings from the cache before computing.
	// When false every folder is recomputed.
	UseCache bool

	// ReadOnlyCache disables writing computed embeddings back.
	ReadOnlyCache bool

	// Workers bounds the number of subtrees aggregated concurrently.
	// Values below 2 aggregate on the calling goroutine.
	Workers int
}

// Stats summarizes one aggregation pass.
type Stats struct {
	Computed    int
	CacheHits   int
	CacheWrites int
	CacheErrors int
}

// Aggregator fills FolderNode.Embedding for every node of a tree.
type Aggregator struct {
	cache  FolderCache
	opts   Options
	logger *zap.Logger
}

// New creates an Aggregator. cache may be nil.
func New(cache FolderCache, opts Options, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{cache: cache, opts: opts, logger: logger}
}

type counters struct {
	computed, hits, writes, errs atomic.Int64
}

// ComputeFolderEmbeddings fills the embedding of every node in post-order,
// root included. A node with nothing to average aborts the pass with
// vecmath.ErrEmptyInput.
func (a *Aggregator) ComputeFolderEmbeddings(ctx context.Context, tree *foldertree.Tree) (Stats, error) {
	var c counters
	var sem chan struct{}
	if a.opts.Workers > 1 {
		sem = make(chan struct{}, a.opts.Workers-1)
	}

	err := a.compute(ctx, tree, tree.Root(), sem, &c)
	stats := Stats{
		Computed:    int(c.computed.Load()),
		CacheHits:   int(c.hits.Load()),
		CacheWrites: int(c.writes.Load()),
		CacheErrors: int(c.errs.Load()),
	}
	if err != nil {
		return stats, err
	}

	a.logger.Debug("folder embeddings computed",
		zap.Int("computed", stats.Computed),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("cache_writes", stats.CacheWrites))
	return stats, nil
}

// compute resolves every child of id before id itself. Children run on new
// goroutines while a worker slot is free and inline otherwise, so a parent
// waiting on its children never holds a slot they need.
func (a *Aggregator) compute(ctx context.Context, tree *foldertree.Tree, id foldertree.NodeID, sem chan struct{}, c *counters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	node := tree.Node(id)

	if len(node.Children) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, child := range node.Children {
			child := child
			select {
			case sem <- struct{}{}:
				g.Go(func() error {
					defer func() { <-sem }()
					return a.compute(gctx, tree, child, sem, c)
				})
			default:
				if err := a.compute(gctx, tree, child, sem, c); err != nil {
					_ = g.Wait()
					return err
				}
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	if a.opts.UseCache && a.cache != nil {
		if emb, ok := a.lookup(ctx, node.Path, tree.Dimension(), c); ok {
			node.Embedding = emb
			c.hits.Add(1)
			return nil
		}
	}

	contributions := make([][]float32, 0, len(node.Files)+len(node.Children))
	for _, f := range node.Files {
		contributions = append(contributions, f.Embedding)
	}
	for _, child := range node.Children {
		contributions = append(contributions, tree.Node(child).Embedding)
	}

	emb, err := vecmath.NormalizedMean(contributions)
	if err != nil {
		return fmt.Errorf("aggregating folder %q: %w", node.Path, err)
	}
	node.Embedding = emb
	c.computed.Add(1)

	if a.cache != nil && !a.opts.ReadOnlyCache {
		if err := a.cache.Put(ctx, node.Path, emb); err != nil {
			c.errs.Add(1)
			a.logger.Warn("folder cache write failed", zap.String("folder", node.Path), zap.Error(err))
		} else {
			c.writes.Add(1)
		}
	}
	return nil
}

// lookup reads a cached embedding, rejecting entries of the wrong size.
// Cache failures degrade to a miss.
func (a *Aggregator) lookup(ctx context.Context, path string, dim int, c *counters) ([]float32, bool) {
	emb, ok, err := a.cache.Get(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false
		}
		c.errs.Add(1)
		a.logger.Warn("folder cache read failed", zap.String("folder", path), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if len(emb) != dim || vecmath.IsZero(emb) {
		a.logger.Info("ignoring stale cached folder embedding",
			zap.String("folder", path),
			zap.Int("cached_dim", len(emb)),
			zap.Int("dim", dim))
		return nil, false
	}
	return vecmath.Normalize(emb), true
}
