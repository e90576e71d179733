package foldertree

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// BuildOptions controls which files enter the tree.
type BuildOptions struct {
	// ExcludePrefixes removes every file equal to or beneath one of these
	// folders.
	ExcludePrefixes []string
}

// Build assembles a Tree from a map of vault-relative file paths to
// embeddings. Folders are created only along the path of a kept file, so
// the tree never contains an empty folder. Input is processed in sorted
// order, so the result does not depend on map iteration order.
func Build(embeddings map[string][]float32, opts BuildOptions) (*Tree, error) {
	prefixes := make([]string, 0, len(opts.ExcludePrefixes))
	for _, p := range opts.ExcludePrefixes {
		if cp := CleanPrefix(p); cp != "" {
			prefixes = append(prefixes, cp)
		}
	}

	t := newTree()
	seen := make(map[string]string, len(embeddings))

	for _, raw := range SortedPaths(embeddings) {
		p, err := CleanPath(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, raw)
		}
		if prev, dup := seen[p]; dup {
			return nil, fmt.Errorf("%w: %q and %q", ErrDuplicatePath, prev, raw)
		}
		seen[p] = raw

		if excludedBy(p, prefixes) {
			t.excluded++
			continue
		}

		emb := embeddings[raw]
		if len(emb) == 0 {
			return nil, fmt.Errorf("%w: %q has no vector", ErrInvalidEmbedding, p)
		}
		if t.dim == 0 {
			t.dim = len(emb)
		} else if len(emb) != t.dim {
			return nil, fmt.Errorf("%w: %q has %d dimensions, want %d",
				vecmath.ErrDimensionMismatch, p, len(emb), t.dim)
		}

		folder := t.ensureFolder(ParentPath(p))
		t.nodes[folder].Files = append(t.nodes[folder].Files, FileEntry{
			Path:      p,
			Embedding: vecmath.Clone(emb),
		})
	}

	for i := range t.nodes {
		node := &t.nodes[i]
		sort.Slice(node.Children, func(a, b int) bool {
			return t.nodes[node.Children[a]].Path < t.nodes[node.Children[b]].Path
		})
		sort.Slice(node.Files, func(a, b int) bool {
			return node.Files[a].Path < node.Files[b].Path
		})
	}

	return t, nil
}

// ensureFolder returns the node for folderPath, creating it and any missing
// ancestors.
func (t *Tree) ensureFolder(folderPath string) NodeID {
	if id, ok := t.index[folderPath]; ok {
		return id
	}
	parent := t.ensureFolder(ParentPath(folderPath))
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, FolderNode{Path: folderPath, Parent: parent})
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	t.index[folderPath] = id
	return id
}

func excludedBy(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
