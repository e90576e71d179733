package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vaultorg/internal/config"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
	"github.com/fyrsmithlabs/vaultorg/internal/store"
)

var (
	transferTexts      string
	transferEmbeddings string
	statusJSON         bool
)

// importCmd loads JSON documents into the store
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import snippets and embeddings from JSON files",
	Long: `Import snippet and embedding documents into the store. Both files map
vault-relative paths to values: snippets to strings, embeddings to arrays
of numbers. Existing entries with the same path are replaced.

Examples:
  # Import embeddings computed elsewhere
  vaultorg import --embeddings doc_emb.json

  # Import both documents
  vaultorg import --texts texts.json --embeddings doc_emb.json`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

// exportCmd writes the store as JSON documents
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export snippets and embeddings to JSON files",
	Long: `Write the stored snippets and embeddings as JSON documents that import
and --embeddings read.

Examples:
  vaultorg export --texts texts.json --embeddings doc_emb.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// statusCmd reports store counts
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many notes are indexed and embedded",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	for _, c := range []*cobra.Command{importCmd, exportCmd} {
		c.Flags().StringVar(&transferTexts, "texts", "", "snippet document path")
		c.Flags().StringVar(&transferEmbeddings, "embeddings-file", "", "embedding document path")
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print counts as JSON")
}

var errNoTransferFiles = errors.New("at least one of --texts or --embeddings-file is required")

func runImport(cmd *cobra.Command, _ []string) (err error) {
	if transferTexts == "" && transferEmbeddings == "" {
		return errNoTransferFiles
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	ctx := a.ctx(cmd)
	st, err := a.openStore()
	if err != nil {
		return err
	}

	if transferTexts != "" {
		texts, err := store.LoadTextsJSON(config.ExpandHome(transferTexts))
		if err != nil {
			return err
		}
		if err := st.PutTexts(ctx, texts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d snippets\n", len(texts))
	}
	if transferEmbeddings != "" {
		vectors, err := store.LoadEmbeddingsJSON(config.ExpandHome(transferEmbeddings))
		if err != nil {
			return err
		}
		if err := st.PutEmbeddings(ctx, vectors); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d embeddings\n", len(vectors))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) (err error) {
	if transferTexts == "" && transferEmbeddings == "" {
		return errNoTransferFiles
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	ctx := a.ctx(cmd)
	st, err := a.openStore()
	if err != nil {
		return err
	}

	if transferTexts != "" {
		texts, err := st.Texts(ctx)
		if err != nil {
			return err
		}
		if err := store.SaveTextsJSON(config.ExpandHome(transferTexts), texts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d snippets to %s\n", len(texts), transferTexts)
	}
	if transferEmbeddings != "" {
		vectors, err := st.Embeddings(ctx)
		if err != nil {
			return err
		}
		if err := store.SaveEmbeddingsJSON(config.ExpandHome(transferEmbeddings), vectors); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d embeddings to %s\n", len(vectors), transferEmbeddings)
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	counts, err := st.Counts(a.ctx(cmd))
	if err != nil {
		return err
	}

	if statusJSON {
		return report.WriteJSON(cmd.OutOrStdout(), counts)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Store:      %s\n", st.Path())
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed:    %d\n", counts.Files)
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded:   %d\n", counts.Embeddings)
	fmt.Fprintf(cmd.OutOrStdout(), "Pending:    %d\n", counts.Pending)
	return nil
}
