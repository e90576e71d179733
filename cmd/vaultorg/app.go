package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/cluster"
	"github.com/fyrsmithlabs/vaultorg/internal/config"
	"github.com/fyrsmithlabs/vaultorg/internal/embeddings"
	"github.com/fyrsmithlabs/vaultorg/internal/foldercache"
	"github.com/fyrsmithlabs/vaultorg/internal/ignore"
	"github.com/fyrsmithlabs/vaultorg/internal/logging"
	"github.com/fyrsmithlabs/vaultorg/internal/metrics"
	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/store"
)

// app carries the configuration and shared services of one command run.
type app struct {
	name    string
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	started time.Time

	store *store.Store
	cache foldercache.Cache
}

// newApp loads configuration, applies the persistent flag overrides and
// builds the logger. withRuntime adds Go runtime collectors to the metrics
// registry, which only long-running commands expose.
func newApp(cmd *cobra.Command, withRuntime bool) (*app, error) {
	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyLogFlags(cmd, &cfg.Logging); err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{
		name:    cmd.Name(),
		cfg:     cfg,
		logger:  logger.Named(cmd.Name()),
		started: time.Now(),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(withRuntime)
	}
	return a, nil
}

func applyLogFlags(cmd *cobra.Command, cfg *logging.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		level, err := logging.LevelFromString(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		cfg.Level = level
	}
	if flags.Changed("log-format") {
		cfg.Format = logFormat
	}
	return nil
}

// ctx tags the command context with the command name and logger.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	ctx := logging.WithCommand(cmd.Context(), a.name)
	return logging.WithLogger(ctx, a.logger)
}

// close releases everything the run opened, records the run and writes the
// metrics textfile when one is configured.
func (a *app) close(err error) error {
	a.metrics.ObserveStage("command_"+a.name, a.started)

	var errs []error
	if a.cache != nil {
		if ferr := a.cache.Flush(context.Background()); ferr != nil {
			errs = append(errs, fmt.Errorf("flush folder cache: %w", ferr))
		}
	}
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close store: %w", cerr))
		}
	}
	if a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if werr := a.metrics.WriteTextfile(config.ExpandHome(a.cfg.Metrics.Textfile)); werr != nil {
			a.logger.Warn(context.Background(), "failed to write metrics textfile", zap.Error(werr))
		}
	}
	_ = a.logger.Sync()

	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// vaultRoot returns the absolute vault root.
func (a *app) vaultRoot() (string, error) {
	root, err := filepath.Abs(config.ExpandHome(a.cfg.Vault.Root))
	if err != nil {
		return "", fmt.Errorf("resolve vault root: %w", err)
	}
	return root, nil
}

// openStore opens the document store once per run.
func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.Open(config.ExpandHome(a.cfg.Storage.DatabasePath), a.logger.Underlying())
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// openCache opens the folder embedding cache. A "none" cache yields nil.
func (a *app) openCache() (foldercache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	c, err := foldercache.New(foldercache.Config{
		Kind:     foldercache.Kind(a.cfg.Storage.FolderCache),
		Path:     config.ExpandHome(a.cfg.Storage.FolderCachePath),
		Compress: a.cfg.Storage.Compress,
	}, a.logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("open folder cache: %w", err)
	}
	a.cache = c
	return c, nil
}

// embedder builds the configured provider wrapped with retries, rate
// limiting and prompt templating.
func (a *app) embedder() (embeddings.Provider, error) {
	e := a.cfg.Embeddings
	task, err := embeddings.ParseTask(e.Task)
	if err != nil {
		return nil, err
	}
	p, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  e.Provider,
		Model:     e.Model,
		BaseURL:   e.BaseURL,
		APIKey:    e.APIKey.Value(),
		Dimension: e.Dimension,
		Timeout:   e.Timeout.Duration(),
		CacheDir:  config.ExpandHome(e.CacheDir),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	return embeddings.NewResilient(p, embeddings.ResilientOptions{
		Task:              task,
		Suffix:            e.Suffix,
		Dimension:         e.Dimension,
		MaxRetries:        e.MaxRetries,
		RequestsPerSecond: e.RequestsPerSecond,
		Timeout:           e.Timeout.Duration(),
		Model:             e.Model,
	}, a.logger.Underlying()), nil
}

// loadEmbeddings returns document embeddings from --embeddings when given,
// otherwise from the store.
func (a *app) loadEmbeddings(ctx context.Context) (map[string][]float32, error) {
	if embeddingsFile != "" {
		return store.LoadEmbeddingsJSON(config.ExpandHome(embeddingsFile))
	}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return st.Embeddings(ctx)
}

// deps assembles organizer dependencies around the folder cache.
func (a *app) deps() (organizer.Deps, error) {
	cache, err := a.openCache()
	if err != nil {
		return organizer.Deps{}, err
	}
	d := organizer.Deps{
		Metrics: a.metrics,
		Logger:  a.logger,
		Workers: a.cfg.Analysis.Workers,
	}
	if cache != nil {
		d.Cache = cache
	}
	return d, nil
}

// labeler names inbox clusters from file names, and from snippets when the
// store is in use and inbox.use_snippets is set.
func (a *app) labeler() (*cluster.KeywordLabeler, error) {
	l := &cluster.KeywordLabeler{MaxWords: a.cfg.Inbox.LabelWords}
	if a.cfg.Inbox.UseSnippets && embeddingsFile == "" {
		st, err := a.openStore()
		if err != nil {
			return nil, err
		}
		l.Snippets = st
	}
	return l, nil
}

// ignoreMatcher compiles the vault ignore files plus configured patterns.
func (a *app) ignoreMatcher(root string) (*ignore.Matcher, error) {
	patterns, err := ignore.NewParser(a.cfg.Vault.IgnoreFiles, ignore.DefaultFallbackPatterns).ParseVault(root)
	if err != nil {
		return nil, fmt.Errorf("parse ignore files: %w", err)
	}
	return ignore.Compile(append(patterns, a.cfg.Vault.IgnorePatterns...))
}

// analyzeOptions maps the analysis section of the config.
func (a *app) analyzeOptions() organizer.AnalyzeOptions {
	c := a.cfg.Analysis
	return organizer.AnalyzeOptions{
		ZThreshold:      c.ZThreshold,
		MinFiles:        c.MinFiles,
		TopK:            c.TopK,
		MinSimilarity:   c.MinSimilarity,
		TopFolders:      c.TopFolders,
		Recompute:       c.Recompute,
		ExcludePrefixes: c.ExcludePrefixes,
	}
}

// inboxOptions maps the inbox section of the config.
func (a *app) inboxOptions() organizer.InboxOptions {
	c := a.cfg.Inbox
	return organizer.InboxOptions{
		Inbox:             c.Path,
		DistanceThreshold: c.DistanceThreshold,
		TopK:              c.TopK,
		MinSimilarity:     c.MinSimilarity,
		Recompute:         a.cfg.Analysis.Recompute,
		ExcludePrefixes:   a.cfg.Analysis.ExcludePrefixes,
	}
}

// Flag override helpers: a flag wins over the config only when set.

func overrideFloat(cmd *cobra.Command, name string, dst *float64, v float64) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func overrideInt(cmd *cobra.Command, name string, dst *int, v int) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func overrideBool(cmd *cobra.Command, name string, dst *bool, v bool) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func overrideString(cmd *cobra.Command, name string, dst *string, v string) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func overrideStrings(cmd *cobra.Command, name string, dst *[]string, v []string) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}
