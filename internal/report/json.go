package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// SaveJSON writes v to path through a temp file and rename, so readers
// never see a partial report.
func SaveJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// LoadAnalysisReport reads a report written by SaveJSON.
func LoadAnalysisReport(path string) (*AnalysisReport, error) {
	var r AnalysisReport
	if err := load(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadInboxReport reads a report written by SaveJSON.
func LoadInboxReport(path string) (*InboxReport, error) {
	var r InboxReport
	if err := load(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decoding report %s: %w", path, err)
	}
	return nil
}
