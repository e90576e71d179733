// Package main implements the vaultorg CLI, which reorganizes a note vault
// by comparing note embeddings with the embeddings of the folders they live in.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// cfgFile overrides ~/.config/vaultorg/config.yaml
	cfgFile   string
	logLevel  string
	logFormat string
	// embeddingsFile reads document embeddings from a JSON file instead of the store
	embeddingsFile string
	// version information
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vaultorg",
	Short: "Organize a note vault by embedding similarity",
	Long: `vaultorg indexes the notes of a vault, embeds them, and compares every
note with the folder it lives in. It reports incoherent folders, suggests
better destinations for misplaced notes and groups the notes of an inbox
folder into clusters with suggested destinations.

Typical workflow:
  vaultorg index                 # extract snippets from the vault
  vaultorg embed                 # embed snippets that have no vector yet
  vaultorg analyze               # find misplaced notes
  vaultorg inbox -i Inbox        # cluster and route the inbox`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.config/vaultorg/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console or json)")
	rootCmd.PersistentFlags().StringVar(&embeddingsFile, "embeddings", "", "read document embeddings from a JSON file instead of the store")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(movesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}
