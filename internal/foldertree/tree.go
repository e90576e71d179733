// Package foldertree builds the folder hierarchy of a note vault from a flat
// map of file paths to embeddings.
//
// Nodes live in an arena owned by Tree and refer to each other by NodeID,
// so parent and child links never form pointer cycles. The root node has
// the empty path and stands for the vault itself: it is part of the tree
// but is never reported as a folder by Folders.
package foldertree

import (
	"errors"
	"sort"
)

// Sentinel errors for tree construction and lookup.
var (
	// ErrInvalidPath indicates a path that is empty or escapes the vault.
	ErrInvalidPath = errors.New("invalid path")

	// ErrDuplicatePath indicates two input paths that clean to the same file.
	ErrDuplicatePath = errors.New("duplicate path")

	// ErrInvalidEmbedding indicates a missing or zero-length embedding.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// NodeID addresses a FolderNode inside a Tree.
type NodeID int

// NoParent is the parent of the root node.
const NoParent NodeID = -1

// FileEntry is a note and its embedding.
type FileEntry struct {
	Path      string
	Embedding []float32
}

// FolderNode is one folder of the vault.
type FolderNode struct {
	// Path is vault-relative; the root has the empty path.
	Path     string
	Parent   NodeID
	Children []NodeID
	// Files holds the direct files only, sorted by path.
	Files []FileEntry
	// Embedding is nil until folder embeddings are computed.
	Embedding []float32
}

// IsRoot reports whether n is the vault root.
func (n *FolderNode) IsRoot() bool {
	return n.Parent == NoParent
}

// Tree is an arena of folder nodes rooted at the vault root.
type Tree struct {
	nodes    []FolderNode
	index    map[string]NodeID
	dim      int
	excluded int
}

func newTree() *Tree {
	t := &Tree{index: make(map[string]NodeID)}
	t.nodes = append(t.nodes, FolderNode{Path: "", Parent: NoParent})
	t.index[""] = 0
	return t
}

// Root returns the ID of the vault root.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Dimension returns the shared embedding length of all files, or 0 for an
// empty tree.
func (t *Tree) Dimension() int { return t.dim }

// Excluded returns the number of input files skipped by exclusion prefixes.
func (t *Tree) Excluded() int { return t.excluded }

// Node returns the node for id. The pointer stays valid for the lifetime of
// the tree. It panics on an unknown id.
func (t *Tree) Node(id NodeID) *FolderNode {
	return &t.nodes[id]
}

// Lookup returns the node ID for a folder path.
func (t *Tree) Lookup(folderPath string) (NodeID, bool) {
	id, ok := t.index[CleanPrefix(folderPath)]
	return id, ok
}

// Walk visits nodes in pre-order starting at the root. Returning false from
// fn skips the children of that node.
func (t *Tree) Walk(fn func(id NodeID, depth int) bool) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		if !fn(id, depth) {
			return
		}
		for _, c := range t.nodes[id].Children {
			visit(c, depth+1)
		}
	}
	visit(t.Root(), 0)
}

// Folders returns every folder except the root in pre-order.
func (t *Tree) Folders() []NodeID {
	out := make([]NodeID, 0, len(t.nodes)-1)
	t.Walk(func(id NodeID, _ int) bool {
		if id != t.Root() {
			out = append(out, id)
		}
		return true
	})
	return out
}

// PostOrder returns every node, root included, with children before their
// parent.
func (t *Tree) PostOrder() []NodeID {
	out := make([]NodeID, 0, len(t.nodes))
	var visit func(id NodeID)
	visit = func(id NodeID) {
		for _, c := range t.nodes[id].Children {
			visit(c)
		}
		out = append(out, id)
	}
	visit(t.Root())
	return out
}

// Files returns all files of the vault in pre-order of their folders.
func (t *Tree) Files() []FileEntry {
	var out []FileEntry
	t.Walk(func(id NodeID, _ int) bool {
		out = append(out, t.nodes[id].Files...)
		return true
	})
	return out
}

// FileCount returns the number of files in the tree.
func (t *Tree) FileCount() int {
	return t.TotalFiles(t.Root())
}

// File returns the entry for a file path.
func (t *Tree) File(filePath string) (FileEntry, bool) {
	id, ok := t.index[ParentPath(filePath)]
	if !ok {
		return FileEntry{}, false
	}
	files := t.nodes[id].Files
	i := sort.Search(len(files), func(i int) bool { return files[i].Path >= filePath })
	if i < len(files) && files[i].Path == filePath {
		return files[i], true
	}
	return FileEntry{}, false
}

// TotalFiles returns the number of files in the subtree rooted at id.
func (t *Tree) TotalFiles(id NodeID) int {
	n := len(t.nodes[id].Files)
	for _, c := range t.nodes[id].Children {
		n += t.TotalFiles(c)
	}
	return n
}

// Depth returns the number of edges between id and the root.
func (t *Tree) Depth(id NodeID) int {
	d := 0
	for p := t.nodes[id].Parent; p != NoParent; p = t.nodes[p].Parent {
		d++
	}
	return d
}

// FolderEmbeddings returns the computed embeddings of all non-root folders
// keyed by path. Folders without an embedding are left out.
func (t *Tree) FolderEmbeddings() map[string][]float32 {
	out := make(map[string][]float32, len(t.nodes))
	for _, id := range t.Folders() {
		if emb := t.nodes[id].Embedding; emb != nil {
			out[t.nodes[id].Path] = emb
		}
	}
	return out
}
