package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// indexEntry is one record of an indexed.json snippet file.
type indexEntry struct {
	Content string `json:"content"`
}

// LoadEmbeddingsJSON reads a {"path": [floats...]} document.
func LoadEmbeddingsJSON(path string) (map[string][]float32, error) {
	var out map[string][]float32
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string][]float32)
	}
	return out, nil
}

// SaveEmbeddingsJSON writes vectors in the LoadEmbeddingsJSON format.
func SaveEmbeddingsJSON(path string, vectors map[string][]float32) error {
	return writeJSONAtomic(path, vectors)
}

// LoadTextsJSON reads a {"path": {"content": "..."}} snippet index.
func LoadTextsJSON(path string) (map[string]string, error) {
	var raw map[string]indexEntry
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for id, e := range raw {
		out[id] = e.Content
	}
	return out, nil
}

// SaveTextsJSON writes snippets in the LoadTextsJSON format.
func SaveTextsJSON(path string, texts map[string]string) error {
	raw := make(map[string]indexEntry, len(texts))
	for id, text := range texts {
		raw[id] = indexEntry{Content: text}
	}
	return writeJSONAtomic(path, raw)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSONAtomic writes through a temp file in the same directory and
// renames it over path.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
