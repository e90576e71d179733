package matcher

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vaultorg/internal/cluster"
	"github.com/fyrsmithlabs/vaultorg/internal/coherence"
	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
)

// FileSuggestion proposes new homes for an outlier file.
type FileSuggestion struct {
	FilePath      string
	CurrentFolder string
	Deviation     float64
	ZScore        float64
	Candidates    []Match
}

// ClusterSuggestion proposes destinations for an inbox cluster.
type ClusterSuggestion struct {
	Cluster    cluster.FileCluster
	Candidates []Match
}

// SuggestForOutliers matches each outlier's own embedding against the
// candidates. The file's current folder and all of its ancestors are
// excluded as exact paths, so sibling folders remain eligible. Outliers
// left without any candidate are dropped.
func SuggestForOutliers(ctx context.Context, tree *foldertree.Tree, outliers []coherence.FileOutlier, candidates []Candidate, opts Options) ([]FileSuggestion, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	out := make([]FileSuggestion, 0, len(outliers))
	for _, o := range outliers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, ok := tree.File(o.FilePath)
		if !ok {
			continue
		}

		fileOpts := opts
		fileOpts.ExcludePaths = append(append([]string(nil), opts.ExcludePaths...), foldertree.AncestorPaths(o.FilePath)...)

		matches, err := TopKFolders(file.Embedding, candidates, fileOpts)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			continue
		}
		out = append(out, FileSuggestion{
			FilePath:      o.FilePath,
			CurrentFolder: o.FolderPath,
			Deviation:     o.Deviation,
			ZScore:        o.ZScore,
			Candidates:    matches,
		})
	}
	return out, nil
}

// SuggestForClusters matches each cluster centroid against the candidates.
// Every cluster yields a suggestion, possibly with no candidates, in the
// input order. With opts.Workers above 1 clusters are matched concurrently.
func SuggestForClusters(ctx context.Context, clusters []cluster.FileCluster, candidates []Candidate, opts Options) ([]ClusterSuggestion, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	out := make([]ClusterSuggestion, len(clusters))
	perCluster := opts
	perCluster.Workers = 1

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 1 {
		g.SetLimit(opts.Workers)
	} else {
		g.SetLimit(1)
	}
	for i := range clusters {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := TopKFolders(clusters[i].Centroid, candidates, perCluster)
			if err != nil {
				return err
			}
			out[i] = ClusterSuggestion{Cluster: clusters[i], Candidates: matches}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
