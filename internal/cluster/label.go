package cluster

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Labeler names a cluster. Labels are presentation only and never change
// membership or ordering.
type Labeler interface {
	Label(ctx context.Context, c FileCluster) (string, error)
}

// SnippetSource returns the indexed text of a note, if any.
type SnippetSource interface {
	Snippet(ctx context.Context, path string) (string, bool, error)
}

// LabelAll fills Label on every cluster that has none. Labeler failures are
// logged and leave the label empty.
func LabelAll(ctx context.Context, clusters []FileCluster, labeler Labeler, logger *zap.Logger) {
	if labeler == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range clusters {
		if clusters[i].Label != "" {
			continue
		}
		label, err := labeler.Label(ctx, clusters[i])
		if err != nil {
			logger.Warn("cluster labeling failed", zap.Int("cluster_id", clusters[i].ID), zap.Error(err))
			continue
		}
		clusters[i].Label = label
	}
}

// KeywordLabeler labels a cluster with its most frequent filename words.
// When Snippets is set, words from each note's indexed text count too.
type KeywordLabeler struct {
	// MaxWords caps the label length; 0 means 4.
	MaxWords int
	Snippets SnippetSource
}

// Label implements Labeler. Words are ranked by frequency, ties in order of
// first appearance. A cluster without usable words is named "Cluster <id>".
func (k *KeywordLabeler) Label(ctx context.Context, c FileCluster) (string, error) {
	maxWords := k.MaxWords
	if maxWords <= 0 {
		maxWords = 4
	}

	counts := make(map[string]int)
	var order []string
	add := func(words []string) {
		for _, w := range words {
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}

	for _, p := range c.Files {
		add(tokenize(stem(p)))
	}
	if k.Snippets != nil {
		for _, p := range c.Files {
			text, ok, err := k.Snippets.Snippet(ctx, p)
			if err != nil {
				return "", fmt.Errorf("snippet for %q: %w", p, err)
			}
			if ok {
				add(tokenize(text))
			}
		}
	}

	if len(order) == 0 {
		return fmt.Sprintf("Cluster %d", c.ID), nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxWords {
		order = order[:maxWords]
	}
	return strings.Join(order, " "), nil
}

// stem returns the file name without directory or extension.
func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// tokenize lowercases text, splits on anything that is not a letter or
// digit, and drops stopwords and words of two letters or fewer.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 2 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "but": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "you": true, "she": true, "they": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "not": true, "into": true, "about": true, "untitled": true,
}
