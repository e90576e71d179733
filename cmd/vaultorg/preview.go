package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
)

var (
	previewMaxDepth  int
	previewAggregate bool
	previewExclude   []string
	previewPlain     bool
)

// previewCmd prints the folder tree
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the vault folder tree built from embedded notes",
	Long: `Print the folder hierarchy derived from embedded note paths with file and
subfolder counts. With --aggregate, folder embeddings are computed (or read
from the cache) and folders that have one are marked.

Examples:
  vaultorg preview --max-depth 2
  vaultorg preview --aggregate`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().IntVarP(&previewMaxDepth, "max-depth", "d", 3, "levels below the root to print (0 for all)")
	previewCmd.Flags().BoolVar(&previewAggregate, "aggregate", false, "compute folder embeddings and mark them")
	previewCmd.Flags().StringSliceVar(&previewExclude, "exclude", nil, "path prefixes to leave out")
	previewCmd.Flags().BoolVar(&previewPlain, "plain", false, "disable colors")
}

func runPreview(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	excludes := a.cfg.Analysis.ExcludePrefixes
	overrideStrings(cmd, "exclude", &excludes, previewExclude)

	ctx := a.ctx(cmd)
	emb, err := a.loadEmbeddings(ctx)
	if err != nil {
		return err
	}
	deps, err := a.deps()
	if err != nil {
		return err
	}

	tree, err := organizer.NewAnalyzer(deps).Preview(ctx, emb, organizer.PreviewOptions{
		ExcludePrefixes: excludes,
		Aggregate:       previewAggregate,
		Recompute:       a.cfg.Analysis.Recompute,
	})
	if err != nil {
		return err
	}

	r := report.NewTextRenderer(cmd.OutOrStdout(), previewPlain)
	r.Title(fmt.Sprintf("%d files in %d folders", tree.FileCount(), tree.Len()))
	r.Tree(tree, previewMaxDepth)
	return nil
}
