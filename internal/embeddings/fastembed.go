//go:build cgo

package embeddings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

const (
	defaultFastEmbedModel = "BAAI/bge-small-en-v1.5"
	fastEmbedBatch        = 256
)

var errFastEmbedClosed = errors.New("fastembed: provider closed")

// FastEmbedConfig selects a local ONNX model. CacheDir defaults to
// ~/.cache/vaultorg/models and MaxLength to 512 tokens.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider embeds snippets in process. Calls share the ONNX
// session under a read lock; Close takes the write lock.
type FastEmbedProvider struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	name      string
	dimension int
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

func fastEmbedCacheDir(dir string) string {
	if dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "vaultorg", "models")
}

// NewFastEmbedProvider loads the model, downloading it into the cache
// directory on first use.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	name := cfg.Model
	if name == "" {
		name = defaultFastEmbedModel
	}
	model, ok := fastEmbedModels[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrInvalidConfig, name)
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}

	quiet := false
	fe, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             fastEmbedCacheDir(cfg.CacheDir),
		MaxLength:            maxLength,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("loading fastembed model %s: %w", name, err)
	}
	return &FastEmbedProvider{model: fe, name: name, dimension: knownDimensions[name]}, nil
}

// session runs fn against the open model.
func (p *FastEmbedProvider) session(ctx context.Context, fn func(*fastembed.FlagEmbedding) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return errFastEmbedClosed
	}
	if err := fn(p.model); err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return nil
}

// EmbedDocuments uses passage embeddings, which BGE models expect for
// stored text.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrEmptyInput)
	}
	var out [][]float32
	err := p.session(ctx, func(m *fastembed.FlagEmbedding) error {
		var err error
		out, err = m.PassageEmbed(texts, fastEmbedBatch)
		return err
	})
	return out, err
}

func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmptyInput)
	}
	var out []float32
	err := p.session(ctx, func(m *fastembed.FlagEmbedding) error {
		var err error
		out, err = m.QueryEmbed(text)
		return err
	})
	return out, err
}

func (p *FastEmbedProvider) Model() string  { return p.name }
func (p *FastEmbedProvider) Dimension() int { return p.dimension }

// Close releases the ONNX session. Later calls fail.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
