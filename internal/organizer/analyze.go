package organizer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/coherence"
	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/matcher"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// AnalyzeOptions tunes a whole-vault analysis.
type AnalyzeOptions struct {
	ZThreshold    float64
	MinFiles      int
	TopK          int
	MinSimilarity float64
	// TopFolders limits the incoherent folder ranking; 0 keeps all.
	TopFolders      int
	Recompute       bool
	ExcludePrefixes []string
}

// validate rejects out-of-range options before any work starts, so a bad
// request never touches the folder cache.
func (o AnalyzeOptions) validate() error {
	if err := coherence.ValidateZThreshold(o.ZThreshold); err != nil {
		return err
	}
	if o.MinFiles < 0 {
		return vecmath.InvalidParameter("min_files", o.MinFiles, "must be >= 0")
	}
	if o.TopFolders < 0 {
		return vecmath.InvalidParameter("top_folders", o.TopFolders, "must be >= 0")
	}
	return matcher.Options{K: o.TopK, MinSimilarity: o.MinSimilarity}.Validate()
}

// Analyzer finds misplaced files across the vault.
type Analyzer struct {
	base
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(d Deps) *Analyzer {
	return &Analyzer{base: newBase(d)}
}

// Analyze builds the folder tree, computes folder embeddings, ranks folders
// by coherence, flags outlier files and suggests destinations for them.
func (a *Analyzer) Analyze(ctx context.Context, embeddings map[string][]float32, opts AnalyzeOptions) (_ *report.AnalysisReport, err error) {
	ctx, span, runID := a.startRun(ctx, "organizer.analyze")
	defer func() { a.finish(span, "analyze", err) }()

	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("input_files", len(embeddings)),
		attribute.Float64("z_threshold", opts.ZThreshold),
		attribute.Int("min_files", opts.MinFiles),
		attribute.Int("top_k", opts.TopK),
	)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	tree, err := foldertree.Build(embeddings, foldertree.BuildOptions{ExcludePrefixes: opts.ExcludePrefixes})
	a.metrics.ObserveStage("build", start)
	if err != nil {
		return nil, fmt.Errorf("building folder tree: %w", err)
	}
	if tree.FileCount() == 0 {
		return nil, ErrNoFiles
	}
	folders := tree.Folders()
	a.metrics.RecordTree(len(folders), tree.FileCount())
	a.logger.Info(ctx, "folder tree built",
		zap.Int("files", tree.FileCount()),
		zap.Int("folders", len(folders)),
		zap.Int("excluded", tree.Excluded()))

	if err := a.aggregate(ctx, tree, opts.ExcludePrefixes, opts.Recompute); err != nil {
		return nil, fmt.Errorf("computing folder embeddings: %w", err)
	}

	start = time.Now()
	ranked, err := coherence.RankIncoherentFolders(tree, opts.MinFiles)
	if err != nil {
		return nil, fmt.Errorf("ranking folders: %w", err)
	}
	outliers, err := coherence.IdentifyAllOutliers(tree, opts.ZThreshold, opts.MinFiles)
	if err != nil {
		return nil, fmt.Errorf("finding outliers: %w", err)
	}
	a.metrics.ObserveStage("coherence", start)

	start = time.Now()
	suggestions, err := matcher.SuggestForOutliers(ctx, tree, outliers, matcher.CandidatesFromTree(tree), matcher.Options{
		K:             opts.TopK,
		MinSimilarity: opts.MinSimilarity,
		Workers:       a.workers,
	})
	a.metrics.ObserveStage("match", start)
	if err != nil {
		return nil, fmt.Errorf("matching destinations: %w", err)
	}
	a.metrics.RecordOutliers(len(outliers), len(suggestions))

	span.SetAttributes(
		attribute.Int("outliers", len(outliers)),
		attribute.Int("suggestions", len(suggestions)),
	)
	a.logger.Info(ctx, "vault analysis complete",
		zap.Int("outliers", len(outliers)),
		zap.Int("suggestions", len(suggestions)))

	return &report.AnalysisReport{
		RunID:        runID,
		AnalysisDate: report.FormatDate(a.now()),
		TotalFiles:   tree.FileCount(),
		TotalFolders: len(folders),
		OutlierCount: len(outliers),
		ZThreshold:   opts.ZThreshold,
		MinFiles:     opts.MinFiles,
		Folders:      report.Folders(ranked, opts.TopFolders),
		Suggestions:  report.FileSuggestions(suggestions),
	}, nil
}

// PreviewOptions tunes Preview.
type PreviewOptions struct {
	ExcludePrefixes []string
	// Aggregate computes folder embeddings so the preview can mark them.
	Aggregate bool
	Recompute bool
}

// Preview builds the folder tree for display.
func (a *Analyzer) Preview(ctx context.Context, embeddings map[string][]float32, opts PreviewOptions) (*foldertree.Tree, error) {
	ctx, span := a.tracer.Start(ctx, "organizer.preview")
	defer span.End()

	tree, err := foldertree.Build(embeddings, foldertree.BuildOptions{ExcludePrefixes: opts.ExcludePrefixes})
	if err != nil {
		return nil, fmt.Errorf("building folder tree: %w", err)
	}
	if opts.Aggregate && tree.FileCount() > 0 {
		if err := a.aggregate(ctx, tree, opts.ExcludePrefixes, opts.Recompute); err != nil {
			return nil, fmt.Errorf("computing folder embeddings: %w", err)
		}
	}
	return tree, nil
}
