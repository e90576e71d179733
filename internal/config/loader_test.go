package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, name, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_MissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithFile_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
vault:
  root: /notes
analysis:
  z_threshold: 1.5
  top_k: 5
inbox:
  path: Capture
  distance_threshold: 0.25
embeddings:
  provider: tei
  base_url: http://tei:8080
  timeout: 5s
logging:
  level: debug
  format: json
`, 0o600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/notes", cfg.Vault.Root)
	assert.Equal(t, 1.5, cfg.Analysis.ZThreshold)
	assert.Equal(t, 5, cfg.Analysis.TopK)
	assert.Equal(t, "Capture", cfg.Inbox.Path)
	assert.Equal(t, 0.25, cfg.Inbox.DistanceThreshold)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, 5*time.Second, cfg.Embeddings.Timeout.Duration())
	assert.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Inbox.TopK)
	assert.Equal(t, 8765, cfg.Server.Port)
}

func TestLoadWithFile_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[analysis]
min_files = 4
min_similarity = 0.6

[storage]
folder_cache = "json"
`, 0o600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Analysis.MinFiles)
	assert.Equal(t, 0.6, cfg.Analysis.MinSimilarity)
	assert.Equal(t, "json", cfg.Storage.FolderCache)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "analysis:\n  z_threshold: 1.5\n", 0o600)
	t.Setenv("VAULTORG_ANALYSIS_Z_THRESHOLD", "2.5")
	t.Setenv("VAULTORG_INBOX_DISTANCE_THRESHOLD", "0.4")
	t.Setenv("VAULTORG_SERVER_PORT", "9000")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Analysis.ZThreshold)
	assert.Equal(t, 0.4, cfg.Inbox.DistanceThreshold)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	path := writeConfig(t, "config.yaml", "inbox:\n  distance_threshold: 3\n", 0o600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadWithFile_RejectsWorldWritable(t *testing.T) {
	path := writeConfig(t, "config.yaml", "vault:\n  root: /notes\n", 0o666)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsLargeFile(t *testing.T) {
	big := make([]byte, maxConfigFileSize+10)
	for i := range big {
		big[i] = '#'
	}
	path := writeConfig(t, "config.yaml", string(big), 0o600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VAULTORG_ANALYSIS_Z_THRESHOLD": "analysis.z_threshold",
		"VAULTORG_EMBEDDINGS_BASE_URL":  "embeddings.base_url",
		"VAULTORG_SERVER_PORT":          "server.port",
		"VAULTORG_DEBUG":                "debug",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, envKey(in))
		})
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "notes"), ExpandHome("~/notes"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
