package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
)

var (
	inboxPath      string
	inboxThreshold float64
	inboxTopK      int
	inboxMinSim    float64
	inboxRecompute bool
	inboxExclude   []string
	inboxOutput    string
	inboxMoves     bool
	inboxVaultRoot string
	inboxQuiet     bool
	inboxPlain     bool
)

// inboxCmd clusters the inbox and suggests destinations
var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Cluster inbox notes and suggest destinations",
	Long: `Group the notes of an inbox folder into clusters of similar notes and
suggest existing folders for each cluster. Folders inside the inbox are
never suggested.

The inbox is matched as a path prefix first; when nothing matches, any
folder named like the inbox is used.

Examples:
  # Cluster the configured inbox
  vaultorg inbox

  # Tighter clusters for a different folder
  vaultorg inbox -i "Unsorted" -t 0.2

  # Print mv commands grouped by cluster
  vaultorg inbox --moves`,
	Args: cobra.NoArgs,
	RunE: runInbox,
}

func init() {
	f := inboxCmd.Flags()
	f.StringVarP(&inboxPath, "inbox", "i", "Inbox", "inbox folder, relative to the vault root")
	f.Float64VarP(&inboxThreshold, "threshold", "t", 0.3, "cosine distance up to which clusters merge (0 to 2)")
	f.IntVarP(&inboxTopK, "top-k", "k", 3, "destination candidates per cluster")
	f.Float64VarP(&inboxMinSim, "min-similarity", "s", 0.5, "minimum cosine similarity for a destination")
	f.BoolVar(&inboxRecompute, "recompute", false, "ignore cached folder embeddings")
	f.StringSliceVar(&inboxExclude, "exclude", nil, "path prefixes never suggested as destinations")
	f.StringVarP(&inboxOutput, "output", "o", "", "write the JSON report to a file, or - for stdout")
	f.BoolVar(&inboxMoves, "moves", false, "print mv commands for each cluster's best destination")
	f.StringVar(&inboxVaultRoot, "vault-root", "", "prefix for paths in mv commands (default vault.root)")
	f.BoolVarP(&inboxQuiet, "quiet", "q", false, "suppress the text report")
	f.BoolVar(&inboxPlain, "plain", false, "disable colors and boxes")
}

func runInbox(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	opts := a.inboxOptions()
	overrideString(cmd, "inbox", &opts.Inbox, inboxPath)
	overrideFloat(cmd, "threshold", &opts.DistanceThreshold, inboxThreshold)
	overrideInt(cmd, "top-k", &opts.TopK, inboxTopK)
	overrideFloat(cmd, "min-similarity", &opts.MinSimilarity, inboxMinSim)
	overrideBool(cmd, "recompute", &opts.Recompute, inboxRecompute)
	overrideStrings(cmd, "exclude", &opts.ExcludePrefixes, inboxExclude)

	ctx := a.ctx(cmd)
	rep, err := a.organizeInbox(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	toStdout, err := writeReport(out, inboxOutput, rep)
	if err != nil {
		return err
	}
	if !inboxQuiet && !toStdout {
		renderInbox(report.NewTextRenderer(out, inboxPlain), rep)
		if inboxOutput != "" {
			fmt.Fprintf(out, "\nReport saved to %s\n", inboxOutput)
		}
	}
	if inboxMoves {
		root := moveRoot(cmd, a.cfg, inboxVaultRoot)
		printLines(out, report.ClusterMoveCommands(rep.Clusters, root))
	}
	return nil
}

// organizeInbox loads embeddings and runs the inbox organizer once.
func (a *app) organizeInbox(ctx context.Context, opts organizer.InboxOptions) (*report.InboxReport, error) {
	emb, err := a.loadEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := a.deps()
	if err != nil {
		return nil, err
	}
	labeler, err := a.labeler()
	if err != nil {
		return nil, err
	}
	return organizer.NewInboxOrganizer(deps, labeler).Organize(ctx, emb, opts)
}

func renderInbox(r *report.TextRenderer, rep *report.InboxReport) {
	r.Title(fmt.Sprintf("Inbox %s: %d files in %d clusters (threshold %.2f)",
		rep.InboxPath, rep.TotalFiles, rep.ClusterCount, rep.DistanceThreshold))
	r.Clusters(rep.Clusters)
}
