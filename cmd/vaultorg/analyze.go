package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vaultorg/internal/config"
	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
)

var (
	analyzeZ          float64
	analyzeMinFiles   int
	analyzeTopK       int
	analyzeMinSim     float64
	analyzeTopFolders int
	analyzeRecompute  bool
	analyzeExclude    []string
	analyzeOutput     string
	analyzeMoves      bool
	analyzeVaultRoot  string
	analyzeQuiet      bool
	analyzePlain      bool
)

// analyzeCmd finds misplaced notes
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find incoherent folders and misplaced notes",
	Long: `Aggregate folder embeddings, score every folder's coherence, flag notes
whose deviation from their folder is a statistical outlier, and suggest
better destinations for them.

Examples:
  # Analyze with configured thresholds
  vaultorg analyze

  # Stricter outliers, save the JSON report
  vaultorg analyze -z 2.5 -o suggestions.json

  # Print shell mv commands for the best destinations
  vaultorg analyze --moves --vault-root ~/notes`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.Float64VarP(&analyzeZ, "z-threshold", "z", 2.0, "z-score above which a note is an outlier")
	f.IntVar(&analyzeMinFiles, "min-files", 3, "minimum direct notes for a folder to be analyzed")
	f.IntVarP(&analyzeTopK, "top-k", "k", 3, "destination candidates per outlier")
	f.Float64VarP(&analyzeMinSim, "min-similarity", "s", 0.5, "minimum cosine similarity for a destination")
	f.IntVar(&analyzeTopFolders, "top-folders", 10, "incoherent folders to report (0 for all)")
	f.BoolVar(&analyzeRecompute, "recompute", false, "ignore cached folder embeddings")
	f.StringSliceVar(&analyzeExclude, "exclude", nil, "path prefixes to leave out of the analysis")
	f.StringVarP(&analyzeOutput, "output", "o", "", "write the JSON report to a file, or - for stdout")
	f.BoolVar(&analyzeMoves, "moves", false, "print mv commands for the best destinations")
	f.StringVar(&analyzeVaultRoot, "vault-root", "", "prefix for paths in mv commands (default vault.root)")
	f.BoolVarP(&analyzeQuiet, "quiet", "q", false, "suppress the text report")
	f.BoolVar(&analyzePlain, "plain", false, "disable colors and boxes")
}

func runAnalyze(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	opts := a.analyzeOptions()
	overrideFloat(cmd, "z-threshold", &opts.ZThreshold, analyzeZ)
	overrideInt(cmd, "min-files", &opts.MinFiles, analyzeMinFiles)
	overrideInt(cmd, "top-k", &opts.TopK, analyzeTopK)
	overrideFloat(cmd, "min-similarity", &opts.MinSimilarity, analyzeMinSim)
	overrideInt(cmd, "top-folders", &opts.TopFolders, analyzeTopFolders)
	overrideBool(cmd, "recompute", &opts.Recompute, analyzeRecompute)
	overrideStrings(cmd, "exclude", &opts.ExcludePrefixes, analyzeExclude)

	ctx := a.ctx(cmd)
	emb, err := a.loadEmbeddings(ctx)
	if err != nil {
		return err
	}
	deps, err := a.deps()
	if err != nil {
		return err
	}

	rep, err := organizer.NewAnalyzer(deps).Analyze(ctx, emb, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	toStdout, err := writeReport(out, analyzeOutput, rep)
	if err != nil {
		return err
	}
	if !analyzeQuiet && !toStdout {
		renderAnalysis(report.NewTextRenderer(out, analyzePlain), rep)
		if analyzeOutput != "" {
			fmt.Fprintf(out, "\nReport saved to %s\n", analyzeOutput)
		}
	}
	if analyzeMoves {
		root := moveRoot(cmd, a.cfg, analyzeVaultRoot)
		printLines(out, report.MoveCommands(rep.Suggestions, root))
	}
	return nil
}

// writeReport saves v as JSON to dest, or writes it to w when dest is "-".
// It reports whether w received the JSON.
func writeReport(w io.Writer, dest string, v any) (bool, error) {
	switch dest {
	case "":
		return false, nil
	case "-":
		return true, report.WriteJSON(w, v)
	default:
		return false, report.SaveJSON(config.ExpandHome(dest), v)
	}
}

func renderAnalysis(r *report.TextRenderer, rep *report.AnalysisReport) {
	r.Title(fmt.Sprintf("Vault analysis: %d files in %d folders, %d outliers",
		rep.TotalFiles, rep.TotalFolders, rep.OutlierCount))
	r.Folders(rep.Folders)
	r.Suggestions(rep.Suggestions)
}

// moveRoot picks the path prefix for mv commands: the flag when set,
// otherwise the configured vault root.
func moveRoot(cmd *cobra.Command, cfg *config.Config, flagValue string) string {
	if cmd.Flags().Changed("vault-root") {
		return config.ExpandHome(flagValue)
	}
	return config.ExpandHome(cfg.Vault.Root)
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
