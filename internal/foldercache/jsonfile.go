package foldercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// JSONFile caches folder embeddings in a {"folder": [floats...]} document.
// The file is read on first use and written back by Flush.
type JSONFile struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	loaded bool
	dirty  bool
	data   map[string][]float32
}

// NewJSONFile returns a cache backed by path. Nothing is read until the
// first Get or Put.
func NewJSONFile(path string, logger *zap.Logger) *JSONFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONFile{path: path, logger: logger}
}

func (j *JSONFile) load() error {
	if j.loaded {
		return nil
	}
	j.data = make(map[string][]float32)

	b, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		j.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read folder cache: %w", err)
	}
	if err := json.Unmarshal(b, &j.data); err != nil {
		return fmt.Errorf("failed to decode folder cache %s: %w", j.path, err)
	}
	j.loaded = true
	j.logger.Debug("loaded folder cache", zap.String("path", j.path), zap.Int("folders", len(j.data)))
	return nil
}

func (j *JSONFile) Get(_ context.Context, path string) ([]float32, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.load(); err != nil {
		return nil, false, err
	}
	v, ok := j.data[path]
	if !ok {
		return nil, false, nil
	}
	return vecmath.Clone(v), true, nil
}

func (j *JSONFile) Put(_ context.Context, path string, embedding []float32) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.load(); err != nil {
		return err
	}
	j.data[path] = vecmath.Clone(embedding)
	j.dirty = true
	return nil
}

// Flush writes the document atomically if anything changed.
func (j *JSONFile) Flush(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.dirty {
		return nil
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	b, err := json.Marshal(j.data)
	if err != nil {
		return fmt.Errorf("failed to encode folder cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dir_emb.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write folder cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("failed to replace folder cache: %w", err)
	}

	j.dirty = false
	j.logger.Debug("flushed folder cache", zap.String("path", j.path), zap.Int("folders", len(j.data)))
	return nil
}
