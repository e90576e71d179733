package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/config"
	"github.com/fyrsmithlabs/vaultorg/internal/httpapi"
	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/store"
)

var (
	serveHost string
	servePort int
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analyses over HTTP",
	Long: `Start an HTTP server exposing folder coherence, outliers, destination
suggestions and inbox clusters as JSON. Every request analyzes the current
embeddings; query parameters override the configured thresholds.

Endpoints:
  GET /health
  GET /metrics
  GET /api/v1/folders?min_files=3&limit=10
  GET /api/v1/outliers?z=2.0
  GET /api/v1/suggestions?z=2.0&top_k=3&min_similarity=0.5
  GET /api/v1/inbox?prefix=Inbox&threshold=0.3&moves=true

Examples:
  vaultorg serve
  vaultorg serve --host 0.0.0.0 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "listen address")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8765, "listen port")
}

// fileSource rereads an embedding document on every request.
type fileSource string

func (f fileSource) Embeddings(context.Context) (map[string][]float32, error) {
	return store.LoadEmbeddingsJSON(string(f))
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer func() { err = a.close(err) }()

	host, port := a.cfg.Server.Host, a.cfg.Server.Port
	overrideString(cmd, "host", &host, serveHost)
	overrideInt(cmd, "port", &port, servePort)

	var source httpapi.EmbeddingSource
	if embeddingsFile != "" {
		source = fileSource(config.ExpandHome(embeddingsFile))
	} else {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		source = st
	}

	deps, err := a.deps()
	if err != nil {
		return err
	}
	labeler, err := a.labeler()
	if err != nil {
		return err
	}

	srv, err := httpapi.NewServer(httpapi.Options{
		Source:         source,
		Analyzer:       organizer.NewAnalyzer(deps),
		InboxOrganizer: organizer.NewInboxOrganizer(deps, labeler),
		Metrics:        a.metrics,
		Analyze:        a.analyzeOptions(),
		Inbox:          a.inboxOptions(),
	}, a.logger.Underlying(), &httpapi.Config{Host: host, Port: port})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx := a.ctx(cmd)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, "http server shutdown failed", zap.Error(err))
		return err
	}
	return <-errCh
}
