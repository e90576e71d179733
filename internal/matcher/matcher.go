// Package matcher ranks candidate folders for a query embedding, with
// subtree and exact-path exclusions and a similarity floor.
package matcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/fyrsmithlabs/vaultorg/internal/foldertree"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// Defaults used by the CLI and HTTP API.
const (
	DefaultTopK          = 3
	DefaultMinSimilarity = 0.5
)

// Candidate is a folder that can receive files.
type Candidate struct {
	Path      string
	Embedding []float32
}

// Match is a scored candidate.
type Match struct {
	Path       string  `json:"folder"`
	Similarity float64 `json:"similarity"`
}

// Options controls TopKFolders.
type Options struct {
	// K is the maximum number of matches; it must be positive.
	K int
	// ExcludePrefixes drops each listed folder and everything beneath it.
	ExcludePrefixes []string
	// ExcludePaths drops exactly the listed folders; their subfolders stay
	// eligible.
	ExcludePaths []string
	// MinSimilarity drops candidates scoring below it. Use -1 to keep all.
	MinSimilarity float64
	// Workers splits scoring across goroutines when above 1.
	Workers int
}

// Validate reports the first out-of-range option.
func (o Options) Validate() error {
	if o.K <= 0 {
		return vecmath.InvalidParameter("k", o.K, "must be > 0")
	}
	if math.IsNaN(o.MinSimilarity) || o.MinSimilarity < -1 || o.MinSimilarity > 1 {
		return vecmath.InvalidParameter("min_similarity", o.MinSimilarity, "must be within [-1, 1]")
	}
	return nil
}

// TopKFolders scores every eligible candidate by cosine similarity to query
// and returns at most K matches, highest first. The vault root (empty path)
// is never a candidate. Equal scores prefer the shallower folder, then the
// shorter path, then the lexically smaller path.
func TopKFolders(query []float32, candidates []Candidate, opts Options) ([]Match, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	prefixes := make([]string, 0, len(opts.ExcludePrefixes))
	for _, p := range opts.ExcludePrefixes {
		prefixes = append(prefixes, foldertree.CleanPrefix(p))
	}
	exact := make(map[string]bool, len(opts.ExcludePaths))
	for _, p := range opts.ExcludePaths {
		exact[foldertree.CleanPrefix(p)] = true
	}

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Path == "" || exact[c.Path] || excluded(c.Path, prefixes) {
			continue
		}
		eligible = append(eligible, c)
	}

	scores, err := score(query, eligible, opts.Workers)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(eligible))
	for i, c := range eligible {
		if scores[i] >= opts.MinSimilarity {
			matches = append(matches, Match{Path: c.Path, Similarity: scores[i]})
		}
	}
	sortMatches(matches)

	if len(matches) > opts.K {
		matches = matches[:opts.K]
	}
	return matches, nil
}

// score computes the similarity of query to each candidate. With workers
// above 1 the candidates are split into contiguous chunks; each chunk
// writes only its own slots, so the result does not depend on scheduling.
func score(query []float32, candidates []Candidate, workers int) ([]float64, error) {
	scores := make([]float64, len(candidates))
	scoreRange := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			s, err := vecmath.Similarity(query, candidates[i].Embedding)
			if err != nil {
				return fmt.Errorf("candidate %q: %w", candidates[i].Path, err)
			}
			scores[i] = s
		}
		return nil
	}

	if workers < 2 || len(candidates) < 2*workers {
		return scores, scoreRange(0, len(candidates))
	}

	chunk := (len(candidates) + workers - 1) / workers
	errs := make(chan error, workers)
	for lo := 0; lo < len(candidates); lo += chunk {
		hi := lo + chunk
		if hi > len(candidates) {
			hi = len(candidates)
		}
		go func(lo, hi int) { errs <- scoreRange(lo, hi) }(lo, hi)
	}

	var firstErr error
	for lo := 0; lo < len(candidates); lo += chunk {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return scores, firstErr
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if sa, sb := foldertree.SegmentCount(a.Path), foldertree.SegmentCount(b.Path); sa != sb {
			return sa < sb
		}
		if len(a.Path) != len(b.Path) {
			return len(a.Path) < len(b.Path)
		}
		return a.Path < b.Path
	})
}

func excluded(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && foldertree.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// CandidatesFromTree returns every non-root folder with a computed
// embedding, in path order.
func CandidatesFromTree(tree *foldertree.Tree) []Candidate {
	return CandidatesFromMap(tree.FolderEmbeddings())
}

// CandidatesFromMap converts a folder path to embedding map into a
// candidate list sorted by path.
func CandidatesFromMap(folders map[string][]float32) []Candidate {
	out := make([]Candidate, 0, len(folders))
	for p, emb := range folders {
		out = append(out, Candidate{Path: p, Embedding: emb})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
