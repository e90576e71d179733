// Package organizer runs the end-to-end analyses: whole-vault coherence
// with move suggestions, and inbox clustering with destinations.
package organizer

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/aggregate"
	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/logging"
	"github.com/fyrsmithlabs/vaultorg/internal/metrics"
)

const instrumentationName = "vaultorg.organizer"

var (
	// ErrNoFiles indicates that no embedded file is left to analyze.
	ErrNoFiles = errors.New("no embedded files to analyze")

	// ErrEmptyInbox indicates that no embedded file lies in the inbox.
	ErrEmptyInbox = errors.New("no embedded files in inbox")
)

// Deps are the collaborators shared by Analyzer and InboxOrganizer. Every
// field is optional.
type Deps struct {
	// Cache holds folder embeddings between runs. If it also has a
	// Flush(context.Context) error method, Flush runs after aggregation.
	Cache   aggregate.FolderCache
	Metrics *metrics.Metrics
	Logger  *logging.Logger
	// TracerProvider defaults to the global otel provider.
	TracerProvider trace.TracerProvider
	// Workers enables parallel aggregation, clustering and matching.
	Workers int
	// Now defaults to time.Now.
	Now func() time.Time
}

type flusher interface {
	Flush(ctx context.Context) error
}

// base carries the resolved Deps.
type base struct {
	cache   aggregate.FolderCache
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
	workers int
	now     func() time.Time
}

func newBase(d Deps) base {
	b := base{
		cache:   d.Cache,
		metrics: d.Metrics,
		logger:  d.Logger,
		workers: d.Workers,
		now:     d.Now,
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.now == nil {
		b.now = time.Now
	}
	tp := d.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	b.tracer = tp.Tracer(instrumentationName)
	return b
}

// startRun assigns a run ID and opens the root span of a run.
func (b *base) startRun(ctx context.Context, name string) (context.Context, trace.Span, string) {
	runID := uuid.NewString()
	ctx, span := b.tracer.Start(logging.WithRunID(ctx, runID), name)
	return ctx, span, runID
}

// finish records err on span and in the run counter.
func (b *base) finish(span trace.Span, command string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	b.metrics.RecordRun(command, err)
	span.End()
}

// aggregate computes folder embeddings for tree using the cache scoped to
// the excluded prefixes, then flushes the cache.
func (b *base) aggregate(ctx context.Context, tree *foldertree.Tree, excludePrefixes []string, recompute bool) error {
	ctx, span := b.tracer.Start(ctx, "organizer.aggregate")
	defer span.End()
	start := time.Now()
	defer b.metrics.ObserveStage("aggregate", start)

	agg := aggregate.New(
		aggregate.Scoped(b.cache, aggregate.ScopeFor(normalizePrefixes(excludePrefixes))),
		aggregate.Options{UseCache: !recompute, Workers: b.workers},
		b.logger.Underlying(),
	)
	stats, err := agg.ComputeFolderEmbeddings(ctx, tree)
	b.metrics.RecordAggregation(stats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if f, ok := b.cache.(flusher); ok {
		if err := f.Flush(ctx); err != nil {
			b.logger.Warn(ctx, "folder cache flush failed", zap.Error(err))
		}
	}

	b.logger.Info(ctx, "folder embeddings ready",
		zap.Int("computed", stats.Computed),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("cache_errors", stats.CacheErrors),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// normalizePrefixes cleans, dedupes and sorts prefixes so equal exclusion
// sets share a cache scope.
func normalizePrefixes(prefixes []string) []string {
	seen := make(map[string]struct{}, len(prefixes))
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		cp := foldertree.CleanPrefix(p)
		if cp == "" {
			continue
		}
		if _, dup := seen[cp]; dup {
			continue
		}
		seen[cp] = struct{}{}
		out = append(out, cp)
	}
	sort.Strings(out)
	return out
}
