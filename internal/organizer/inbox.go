package organizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/cluster"
	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/matcher"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// InboxOptions tunes an inbox run.
type InboxOptions struct {
	// Inbox is the folder holding unsorted notes. When no file lies under it
	// at the vault root, every folder named like its last segment counts.
	Inbox             string
	DistanceThreshold float64
	TopK              int
	MinSimilarity     float64
	Recompute         bool
	// ExcludePrefixes are removed from the destination candidates.
	ExcludePrefixes []string
}

// validate rejects out-of-range options before any work starts.
func (o InboxOptions) validate() error {
	if foldertree.CleanPrefix(o.Inbox) == "" {
		return vecmath.InvalidParameter("inbox", o.Inbox, "must name a folder")
	}
	if err := cluster.ValidateThreshold(o.DistanceThreshold); err != nil {
		return err
	}
	return matcher.Options{K: o.TopK, MinSimilarity: o.MinSimilarity}.Validate()
}

// InboxOrganizer groups inbox notes and proposes a destination per group.
type InboxOrganizer struct {
	base
	engine  *cluster.Engine
	labeler cluster.Labeler
}

// NewInboxOrganizer creates an InboxOrganizer. labeler may be nil, which
// leaves clusters unlabeled.
func NewInboxOrganizer(d Deps, labeler cluster.Labeler) *InboxOrganizer {
	b := newBase(d)
	return &InboxOrganizer{
		base:    b,
		engine:  cluster.NewEngine(cluster.Options{Workers: b.workers}, b.logger.Underlying()),
		labeler: labeler,
	}
}

// Organize clusters the inbox files, labels the clusters, and matches each
// centroid against the folder embeddings of the rest of the vault.
func (o *InboxOrganizer) Organize(ctx context.Context, embeddings map[string][]float32, opts InboxOptions) (_ *report.InboxReport, err error) {
	ctx, span, runID := o.startRun(ctx, "organizer.inbox")
	defer func() { o.finish(span, "inbox", err) }()

	inbox := foldertree.CleanPrefix(opts.Inbox)
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("inbox", inbox),
		attribute.Float64("distance_threshold", opts.DistanceThreshold),
		attribute.Int("top_k", opts.TopK),
	)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	inboxFiles, roots := SelectInbox(embeddings, inbox)
	if len(inboxFiles) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyInbox, inbox)
	}
	o.logger.Info(ctx, "inbox files selected",
		zap.Int("files", len(inboxFiles)),
		zap.Strings("roots", roots))

	clusters, err := o.cluster(ctx, inboxFiles, opts.DistanceThreshold)
	if err != nil {
		return nil, err
	}

	excludes := append(append([]string(nil), opts.ExcludePrefixes...), roots...)
	candidates, err := o.candidates(ctx, embeddings, excludes, opts.Recompute)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	suggestions, err := matcher.SuggestForClusters(ctx, clusters, candidates, matcher.Options{
		K:               opts.TopK,
		MinSimilarity:   opts.MinSimilarity,
		ExcludePrefixes: roots,
		Workers:         o.workers,
	})
	o.metrics.ObserveStage("match", start)
	if err != nil {
		return nil, fmt.Errorf("matching destinations: %w", err)
	}

	matched := 0
	for _, s := range suggestions {
		if len(s.Candidates) > 0 {
			matched++
		}
	}
	o.metrics.RecordClusters(len(clusters), matched)
	span.SetAttributes(attribute.Int("clusters", len(clusters)), attribute.Int("matched", matched))
	o.logger.Info(ctx, "inbox analysis complete",
		zap.Int("clusters", len(clusters)),
		zap.Int("matched", matched))

	return &report.InboxReport{
		RunID:             runID,
		AnalysisDate:      report.FormatDate(o.now()),
		InboxPath:         inbox,
		TotalFiles:        len(inboxFiles),
		ClusterCount:      len(clusters),
		DistanceThreshold: opts.DistanceThreshold,
		Stats:             report.RoundStats(cluster.Summarize(clusters)),
		Clusters:          report.ClusterEntries(suggestions),
	}, nil
}

func (o *InboxOrganizer) cluster(ctx context.Context, files map[string][]float32, threshold float64) ([]cluster.FileCluster, error) {
	ctx, span := o.tracer.Start(ctx, "organizer.cluster")
	defer span.End()
	start := time.Now()
	defer o.metrics.ObserveStage("cluster", start)

	// Building a tree validates paths and dimensions.
	tree, err := foldertree.Build(files, foldertree.BuildOptions{})
	if err != nil {
		return nil, fmt.Errorf("reading inbox files: %w", err)
	}
	clusters, err := o.engine.Cluster(ctx, tree.Files(), threshold)
	if err != nil {
		return nil, fmt.Errorf("clustering inbox: %w", err)
	}
	cluster.LabelAll(ctx, clusters, o.labeler, o.logger.Underlying())
	return clusters, nil
}

// candidates aggregates the folders outside the excluded prefixes. A vault
// with nothing left yields no candidates.
func (o *InboxOrganizer) candidates(ctx context.Context, embeddings map[string][]float32, excludes []string, recompute bool) ([]matcher.Candidate, error) {
	tree, err := foldertree.Build(embeddings, foldertree.BuildOptions{ExcludePrefixes: excludes})
	if err != nil {
		return nil, fmt.Errorf("building folder tree: %w", err)
	}
	if tree.FileCount() == 0 {
		o.logger.Warn(ctx, "no files outside the inbox; clusters get no destinations")
		return nil, nil
	}
	o.metrics.RecordTree(len(tree.Folders()), tree.FileCount())
	if err := o.aggregate(ctx, tree, excludes, recompute); err != nil {
		return nil, fmt.Errorf("computing folder embeddings: %w", err)
	}
	return matcher.CandidatesFromTree(tree), nil
}

// SelectInbox returns the files under inbox and the inbox folders they were
// found in. Files directly under the prefix win; otherwise every folder
// whose last segment equals the prefix's last segment is an inbox.
func SelectInbox(embeddings map[string][]float32, inbox string) (map[string][]float32, []string) {
	inbox = foldertree.CleanPrefix(inbox)
	if files := foldertree.FilterByPrefix(embeddings, inbox); len(files) > 0 {
		return files, []string{inbox}
	}

	component := inbox
	if i := strings.LastIndex(component, "/"); i >= 0 {
		component = component[i+1:]
	}
	files := foldertree.FilterByComponent(embeddings, component)

	roots := make(map[string]struct{})
	for p := range files {
		roots[componentRoot(p, component)] = struct{}{}
	}
	out := make([]string, 0, len(roots))
	for r := range roots {
		out = append(out, r)
	}
	sort.Strings(out)
	return files, out
}

// componentRoot returns the shallowest folder of p named component.
func componentRoot(p, component string) string {
	segments := strings.Split(foldertree.ParentPath(p), "/")
	for i, s := range segments {
		if s == component {
			return strings.Join(segments[:i+1], "/")
		}
	}
	return foldertree.ParentPath(p)
}
