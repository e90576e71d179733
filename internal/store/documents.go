package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Counts reports table sizes.
type Counts struct {
	Files      int `json:"files"`
	Embeddings int `json:"embeddings"`
	// Pending counts files that have text but no embedding.
	Pending int `json:"pending"`
}

// PutTexts inserts or replaces snippet text per document ID.
func (s *Store) PutTexts(ctx context.Context, texts map[string]string) error {
	if len(texts) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO files (id, text) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for id, text := range texts {
			if _, err := stmt.ExecContext(ctx, id, text); err != nil {
				return fmt.Errorf("failed to insert text %s: %w", id, err)
			}
		}
		return nil
	})
}

// Texts returns every stored snippet.
func (s *Store) Texts(ctx context.Context) (map[string]string, error) {
	return s.queryTexts(ctx, `SELECT id, text FROM files`)
}

// TextIDs returns the set of document IDs that have text.
func (s *Store) TextIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM files`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// MissingEmbeddings returns the non-empty snippets that have no embedding yet.
func (s *Store) MissingEmbeddings(ctx context.Context) (map[string]string, error) {
	return s.queryTexts(ctx, `
		SELECT f.id, f.text FROM files f
		LEFT JOIN embeddings e ON e.id = f.id
		WHERE e.id IS NULL AND trim(f.text) != ''`)
}

// Snippet returns the stored text for one document.
func (s *Store) Snippet(ctx context.Context, id string) (string, bool, error) {
	var text string
	err := s.conn.QueryRowContext(ctx, `SELECT text FROM files WHERE id = ?`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query snippet %s: %w", id, err)
	}
	return text, true, nil
}

// PutEmbeddings inserts or replaces vectors in a single transaction.
func (s *Store) PutEmbeddings(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO embeddings (id, dim, vector) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for id, v := range vectors {
			if len(v) == 0 {
				return fmt.Errorf("embedding for %s is empty", id)
			}
			if _, err := stmt.ExecContext(ctx, id, len(v), EncodeVector(v)); err != nil {
				return fmt.Errorf("failed to insert embedding %s: %w", id, err)
			}
		}
		return nil
	})
}

// Embeddings returns every stored vector.
func (s *Store) Embeddings(ctx context.Context) (map[string][]float32, error) {
	return s.queryEmbeddings(ctx, `SELECT id, vector FROM embeddings`)
}

// EmbeddingsWithPrefix returns vectors whose ID lies under the folder
// prefix, matching whole path segments only.
func (s *Store) EmbeddingsWithPrefix(ctx context.Context, prefix string) (map[string][]float32, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return s.Embeddings(ctx)
	}
	folder := prefix + "/"
	return s.queryEmbeddings(ctx,
		`SELECT id, vector FROM embeddings WHERE id = ? OR substr(id, 1, ?) = ?`,
		prefix, utf8.RuneCountInString(folder), folder)
}

// Delete removes documents and their embeddings.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete text %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete embedding %s: %w", id, err)
			}
		}
		return nil
	})
}

// Counts returns table sizes.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM embeddings),
			(SELECT COUNT(*) FROM files f LEFT JOIN embeddings e ON e.id = f.id
			 WHERE e.id IS NULL AND trim(f.text) != '')`).Scan(&c.Files, &c.Embeddings, &c.Pending)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count documents: %w", err)
	}
	return c, nil
}

func (s *Store) queryTexts(ctx context.Context, query string, args ...any) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query texts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("failed to scan text: %w", err)
		}
		out[id] = text
	}
	return out, rows.Err()
}

func (s *Store) queryEmbeddings(ctx context.Context, query string, args ...any) (map[string][]float32, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		v, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", id, err)
		}
		out[id] = v
	}
	return out, rows.Err()
}
