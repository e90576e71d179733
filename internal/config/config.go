// Package config provides configuration loading for vaultorg.
//
// Values come from built-in defaults, then an optional YAML or TOML file,
// then VAULTORG_* environment variables. CLI flags are applied on top by
// the command layer.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/vaultorg/internal/logging"
)

// Config holds the complete vaultorg configuration.
type Config struct {
	Vault      VaultConfig      `koanf:"vault"`
	Storage    StorageConfig    `koanf:"storage"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Analysis   AnalysisConfig   `koanf:"analysis"`
	Inbox      InboxConfig      `koanf:"inbox"`
	Logging    logging.Config   `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Server     ServerConfig     `koanf:"server"`
	Watch      WatchConfig      `koanf:"watch"`
}

// VaultConfig describes the note vault on disk.
type VaultConfig struct {
	Root            string   `koanf:"root"`
	Extensions      []string `koanf:"extensions"`
	IgnoreFiles     []string `koanf:"ignore_files"`
	IgnorePatterns  []string `koanf:"ignore_patterns"`
	SnippetWords    int      `koanf:"snippet_words"`
	MinSnippetChars int      `koanf:"min_snippet_chars"`
}

// StorageConfig locates the document store and folder embedding cache.
type StorageConfig struct {
	DatabasePath string `koanf:"database_path"`
	// FolderCache is chromem, json, memory or none.
	FolderCache     string `koanf:"folder_cache"`
	FolderCachePath string `koanf:"folder_cache_path"`
	Compress        bool   `koanf:"compress"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	// Provider is ollama, tei or fastembed.
	Provider          string   `koanf:"provider"`
	Model             string   `koanf:"model"`
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	Dimension         int      `koanf:"dimension"`
	BatchSize         int      `koanf:"batch_size"`
	Timeout           Duration `koanf:"timeout"`
	MaxRetries        int      `koanf:"max_retries"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
	// Task selects the instruction template: clustering, retrieval_query,
	// retrieval_doc or none.
	Task     string `koanf:"task"`
	Suffix   string `koanf:"suffix"`
	CacheDir string `koanf:"cache_dir"`
}

// AnalysisConfig tunes folder coherence analysis.
type AnalysisConfig struct {
	ZThreshold      float64  `koanf:"z_threshold"`
	MinFiles        int      `koanf:"min_files"`
	TopK            int      `koanf:"top_k"`
	MinSimilarity   float64  `koanf:"min_similarity"`
	TopFolders      int      `koanf:"top_folders"`
	Workers         int      `koanf:"workers"`
	Recompute       bool     `koanf:"recompute"`
	ExcludePrefixes []string `koanf:"exclude_prefixes"`
}

// InboxConfig tunes inbox clustering.
type InboxConfig struct {
	Path              string  `koanf:"path"`
	DistanceThreshold float64 `koanf:"distance_threshold"`
	TopK              int     `koanf:"top_k"`
	MinSimilarity     float64 `koanf:"min_similarity"`
	LabelWords        int     `koanf:"label_words"`
	UseSnippets       bool    `koanf:"use_snippets"`
}

// MetricsConfig controls Prometheus output.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	// Textfile, when set, receives the registry after each run in the
	// node_exporter textfile format.
	Textfile string `koanf:"textfile"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// WatchConfig controls the inbox watcher.
type WatchConfig struct {
	Debounce Duration `koanf:"debounce"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Vault: VaultConfig{
			Root:            ".",
			Extensions:      []string{".md"},
			IgnoreFiles:     []string{".vaultignore", ".gitignore"},
			SnippetWords:    200,
			MinSnippetChars: 30,
		},
		Storage: StorageConfig{
			DatabasePath:    "~/.local/share/vaultorg/vault.db",
			FolderCache:     "chromem",
			FolderCachePath: "~/.local/share/vaultorg/folders",
			Compress:        true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:          "ollama",
			Model:             "dengcao/Qwen3-Embedding-0.6B:Q8_0",
			BaseURL:           "http://localhost:11434",
			Dimension:         1024,
			BatchSize:         10,
			Timeout:           Duration(60 * time.Second),
			MaxRetries:        3,
			RequestsPerSecond: 5,
			Task:              "clustering",
			Suffix:            "<|endoftext|>",
		},
		Analysis: AnalysisConfig{
			ZThreshold:    2.0,
			MinFiles:      3,
			TopK:          3,
			MinSimilarity: 0.5,
			TopFolders:    10,
			Workers:       1,
		},
		Inbox: InboxConfig{
			Path:              "Inbox",
			DistanceThreshold: 0.3,
			TopK:              3,
			MinSimilarity:     0.5,
			LabelWords:        4,
		},
		Logging: *logging.NewDefaultConfig(),
		Metrics: MetricsConfig{Enabled: true},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8765,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Watch: WatchConfig{
			Debounce: Duration(2 * time.Second),
		},
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks all sections.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Vault.Root == "" {
		add("vault.root is required")
	}
	if c.Vault.SnippetWords <= 0 {
		add("vault.snippet_words must be > 0, got %d", c.Vault.SnippetWords)
	}

	switch c.Storage.FolderCache {
	case "chromem", "json", "memory", "none":
	default:
		add("storage.folder_cache must be chromem, json, memory or none, got %q", c.Storage.FolderCache)
	}
	if c.Storage.DatabasePath == "" {
		add("storage.database_path is required")
	}

	switch c.Embeddings.Provider {
	case "ollama", "tei", "fastembed":
	default:
		add("embeddings.provider must be ollama, tei or fastembed, got %q", c.Embeddings.Provider)
	}
	switch c.Embeddings.Task {
	case "clustering", "retrieval_query", "retrieval_doc", "none":
	default:
		add("embeddings.task %q is not supported", c.Embeddings.Task)
	}
	if c.Embeddings.Dimension < 0 {
		add("embeddings.dimension must be >= 0, got %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.BatchSize <= 0 {
		add("embeddings.batch_size must be > 0, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.MaxRetries < 0 {
		add("embeddings.max_retries must be >= 0, got %d", c.Embeddings.MaxRetries)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		add("embeddings.requests_per_second must be >= 0, got %v", c.Embeddings.RequestsPerSecond)
	}

	if math.IsNaN(c.Analysis.ZThreshold) || math.IsInf(c.Analysis.ZThreshold, 0) {
		add("analysis.z_threshold must be finite")
	}
	if c.Analysis.MinFiles < 2 {
		add("analysis.min_files must be >= 2, got %d", c.Analysis.MinFiles)
	}
	validateMatch(add, "analysis", c.Analysis.TopK, c.Analysis.MinSimilarity)
	if c.Analysis.Workers < 1 {
		add("analysis.workers must be >= 1, got %d", c.Analysis.Workers)
	}

	if c.Inbox.DistanceThreshold < 0 || c.Inbox.DistanceThreshold > 2 {
		add("inbox.distance_threshold must be within [0, 2], got %v", c.Inbox.DistanceThreshold)
	}
	validateMatch(add, "inbox", c.Inbox.TopK, c.Inbox.MinSimilarity)

	if err := c.Logging.Validate(); err != nil {
		add("logging: %v", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be within 1-65535, got %d", c.Server.Port)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func validateMatch(add func(string, ...any), section string, topK int, minSim float64) {
	if topK <= 0 {
		add("%s.top_k must be > 0, got %d", section, topK)
	}
	if math.IsNaN(minSim) || minSim < -1 || minSim > 1 {
		add("%s.min_similarity must be within [-1, 1], got %v", section, minSim)
	}
}
