package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/embeddings"
	"github.com/fyrsmithlabs/vaultorg/internal/indexer"
)

var (
	indexForce bool
	embedAll   bool
)

// indexCmd extracts note snippets into the store
var indexCmd = &cobra.Command{
	Use:   "index [vault]",
	Short: "Extract note snippets into the store",
	Long: `Walk the vault, skip ignored paths, and store a snippet of every note.

Notes that already have a snippet are skipped unless --force is given.

Examples:
  # Index the configured vault
  vaultorg index

  # Re-index everything under ~/notes
  vaultorg index ~/notes --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

// embedCmd embeds stored snippets
var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed snippets that have no vector yet",
	Long: `Send stored snippets to the configured embedding provider in batches and
store the vectors. Failed batches are logged and skipped; rerun embed to
retry them.

Examples:
  # Embed new snippets
  vaultorg embed

  # Re-embed every snippet, e.g. after switching models
  vaultorg embed --all`,
	Args: cobra.NoArgs,
	RunE: runEmbed,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "re-index notes that already have a snippet")
	embedCmd.Flags().BoolVar(&embedAll, "all", false, "re-embed every stored snippet")
}

func runIndex(cmd *cobra.Command, args []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()
	defer func() { a.metrics.RecordRun(a.name, err) }()

	if len(args) == 1 {
		a.cfg.Vault.Root = args[0]
	}
	res, err := a.index(a.ctx(cmd), indexForce)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d notes (%d scanned, %d ignored, %d unchanged, %d too short)\n",
		len(res.Snippets), res.Scanned, res.Ignored, res.Known, res.Short)
	return nil
}

func runEmbed(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()
	defer func() { a.metrics.RecordRun(a.name, err) }()

	stats, pending, err := a.embed(a.ctx(cmd), embedAll)
	if err != nil {
		return err
	}
	if pending == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to embed")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d of %d snippets in %d batches\n", stats.Embedded, pending, stats.Batches)
	if len(stats.Failed) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d snippets failed; rerun embed to retry them\n", len(stats.Failed))
	}
	return nil
}

// index scans the vault and stores the snippets of new or changed notes.
func (a *app) index(ctx context.Context, force bool) (*indexer.Result, error) {
	root, err := a.vaultRoot()
	if err != nil {
		return nil, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	known, err := st.TextIDs(ctx)
	if err != nil {
		return nil, err
	}

	scanner := indexer.New(indexer.Options{
		Extensions:    a.cfg.Vault.Extensions,
		IgnoreFiles:   a.cfg.Vault.IgnoreFiles,
		ExtraPatterns: a.cfg.Vault.IgnorePatterns,
		SnippetWords:  a.cfg.Vault.SnippetWords,
		MinChars:      a.cfg.Vault.MinSnippetChars,
		Known:         known,
		Force:         force,
	}, a.logger.Underlying())

	start := time.Now()
	res, err := scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}
	a.metrics.ObserveStage("index", start)

	if err := st.PutTexts(ctx, res.Snippets); err != nil {
		return nil, err
	}

	a.metrics.RecordIndexed("indexed", len(res.Snippets))
	a.metrics.RecordIndexed("ignored", res.Ignored)
	a.metrics.RecordIndexed("known", res.Known)
	a.metrics.RecordIndexed("short", res.Short)
	a.metrics.RecordIndexed("skipped", len(res.Skipped))

	a.logger.Info(ctx, "index complete",
		zap.String("root", root),
		zap.Int("scanned", res.Scanned),
		zap.Int("indexed", len(res.Snippets)),
		zap.Int("ignored", res.Ignored),
		zap.Int("known", res.Known),
		zap.Int("short", res.Short),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// embed sends pending snippets, or every snippet when all is set, to the
// provider and stores each batch as it completes. It also returns how many
// snippets were pending.
func (a *app) embed(ctx context.Context, all bool) (embeddings.BatchStats, int, error) {
	st, err := a.openStore()
	if err != nil {
		return embeddings.BatchStats{}, 0, err
	}
	var texts map[string]string
	if all {
		texts, err = st.Texts(ctx)
	} else {
		texts, err = st.MissingEmbeddings(ctx)
	}
	if err != nil {
		return embeddings.BatchStats{}, 0, err
	}
	if len(texts) == 0 {
		return embeddings.BatchStats{}, 0, nil
	}

	provider, err := a.embedder()
	if err != nil {
		return embeddings.BatchStats{}, len(texts), err
	}
	defer provider.Close()

	start := time.Now()
	stats, err := embeddings.EmbedAll(ctx, provider, texts, a.cfg.Embeddings.BatchSize, st.PutEmbeddings, a.logger.Underlying())
	a.metrics.ObserveStage("embed", start)
	a.metrics.RecordIndexed("embedded", stats.Embedded)
	a.metrics.RecordIndexed("embed_failed", len(stats.Failed))
	if err != nil {
		return stats, len(texts), fmt.Errorf("embed snippets: %w", err)
	}
	return stats, len(texts), nil
}
