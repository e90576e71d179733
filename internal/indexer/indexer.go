// Package indexer walks a note vault and extracts one text snippet per note.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/ignore"
)

const (
	DefaultSnippetWords = 200
	DefaultMinChars     = 30
	maxFileSize         = 10 * 1024 * 1024
)

// Options controls a scan.
type Options struct {
	// Extensions lists note file extensions, matched case-insensitively.
	// Defaults to .md.
	Extensions []string
	// IgnoreFiles and FallbackPatterns configure the ignore parser.
	IgnoreFiles      []string
	FallbackPatterns []string
	// ExtraPatterns are appended to whatever the ignore files provide.
	ExtraPatterns []string
	SnippetWords  int
	// MinChars drops shorter snippets. 0 means DefaultMinChars and a
	// negative value keeps everything.
	MinChars int
	// Known lists IDs that already have a snippet. They are skipped unless
	// Force is set.
	Known map[string]struct{}
	Force bool
}

// Result is the outcome of a scan.
type Result struct {
	// Snippets maps vault-relative, slash-separated paths to snippet text.
	Snippets map[string]string
	Scanned  int
	Ignored  int
	Known    int
	// Short counts notes whose snippet fell under the minimum length.
	Short   int
	Skipped []string
}

// Scanner indexes vault notes.
type Scanner struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Scanner, filling unset options with defaults.
func New(opts Options, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md"}
	}
	if opts.IgnoreFiles == nil {
		opts.IgnoreFiles = ignore.DefaultIgnoreFiles
	}
	if opts.FallbackPatterns == nil {
		opts.FallbackPatterns = ignore.DefaultFallbackPatterns
	}
	if opts.SnippetWords <= 0 {
		opts.SnippetWords = DefaultSnippetWords
	}
	switch {
	case opts.MinChars == 0:
		opts.MinChars = DefaultMinChars
	case opts.MinChars < 0:
		opts.MinChars = 0
	}
	return &Scanner{opts: opts, logger: logger}
}

// Scan walks root and returns snippets for every note not excluded by the
// ignore rules. Unreadable or binary files are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}

	patterns, err := ignore.NewParser(s.opts.IgnoreFiles, s.opts.FallbackPatterns).ParseVault(root)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}
	matcher, err := ignore.Compile(append(append([]string{}, patterns...), s.opts.ExtraPatterns...))
	if err != nil {
		return nil, err
	}

	res := &Result{Snippets: make(map[string]string)}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("skipping unreadable path", zap.String("path", p), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.Match(rel, true) {
				res.Ignored++
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !s.isNote(rel) {
			return nil
		}
		if matcher.Match(rel, false) {
			res.Ignored++
			return nil
		}
		res.Scanned++

		if _, ok := s.opts.Known[rel]; ok && !s.opts.Force {
			res.Known++
			return nil
		}

		snippet, ok, err := s.snippetFor(p)
		if err != nil {
			s.logger.Warn("skipping note", zap.String("path", rel), zap.Error(err))
			res.Skipped = append(res.Skipped, rel)
			return nil
		}
		if !ok {
			res.Short++
			return nil
		}
		res.Snippets[rel] = snippet
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walking vault: %w", err)
	}

	s.logger.Info("vault scanned",
		zap.String("root", root),
		zap.Int("scanned", res.Scanned),
		zap.Int("indexed", len(res.Snippets)),
		zap.Int("known", res.Known),
		zap.Int("ignored", res.Ignored),
		zap.Int("short", res.Short),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (s *Scanner) isNote(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, want := range s.opts.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (s *Scanner) snippetFor(path string) (string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false, err
	}
	if info.Size() > maxFileSize {
		return "", false, fmt.Errorf("file too large: %d bytes", info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if !utf8.Valid(content) {
		return "", false, fmt.Errorf("not valid UTF-8")
	}
	return Snippet(strings.NewReader(string(content)), s.opts.SnippetWords, s.opts.MinChars)
}
