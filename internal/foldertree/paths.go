package foldertree

import (
	"path"
	"sort"
	"strings"
)

// CleanPath normalizes a vault-relative path: backslashes become slashes,
// leading "./" and "/" are stripped and "." / ".." segments are resolved.
// It returns ErrInvalidPath for empty paths and paths escaping the vault.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", ErrInvalidPath
	}
	return p, nil
}

// CleanPrefix normalizes a folder prefix. Trailing slashes are dropped and
// an empty or "." prefix means the vault root.
func CleanPrefix(prefix string) string {
	prefix = strings.ReplaceAll(prefix, "\\", "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

// HasPrefix reports whether p equals prefix or lies beneath it. Matching is
// by whole path segments, so "A/C" covers "A/C/x.md" but not "A/CD/x.md".
// The empty prefix covers everything.
func HasPrefix(p, prefix string) bool {
	prefix = CleanPrefix(prefix)
	if prefix == "" {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// ParentPath returns the folder containing p, or "" for top-level entries.
func ParentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// AncestorPaths returns the folder containing filePath and every ancestor
// folder above it, nearest first. The vault root is not included.
func AncestorPaths(filePath string) []string {
	var out []string
	for dir := ParentPath(filePath); dir != ""; dir = ParentPath(dir) {
		out = append(out, dir)
	}
	return out
}

// SegmentCount returns the number of path segments in p. The root has none.
func SegmentCount(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// FilterByPrefix returns the entries of embeddings whose path lies under
// prefix (segment-aware). The vectors are shared, not copied.
func FilterByPrefix(embeddings map[string][]float32, prefix string) map[string][]float32 {
	out := make(map[string][]float32)
	for p, v := range embeddings {
		if HasPrefix(p, prefix) {
			out[p] = v
		}
	}
	return out
}

// FilterByComponent returns entries that contain component as a whole
// directory segment anywhere in their path, e.g. "Inbox" matches
// "Notes/Inbox/a.md". It is the fallback when a prefix matches nothing at
// the vault root.
func FilterByComponent(embeddings map[string][]float32, component string) map[string][]float32 {
	component = CleanPrefix(component)
	out := make(map[string][]float32)
	if component == "" {
		return out
	}
	for p, v := range embeddings {
		if strings.Contains("/"+ParentPath(p)+"/", "/"+component+"/") {
			out[p] = v
		}
	}
	return out
}

// SortedPaths returns the keys of embeddings in lexical order.
func SortedPaths(embeddings map[string][]float32) []string {
	keys := make([]string, 0, len(embeddings))
	for k := range embeddings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
