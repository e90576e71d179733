package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIServer(t *testing.T, handler http.HandlerFunc) *TEIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", Model: "test", APIKey: "tok"})
	require.NoError(t, err)
	return p
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	var got teiRequest
	p := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		out := make([][]float32, len(got.Inputs))
		for i := range got.Inputs {
			out[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Inputs)
	assert.True(t, got.Truncate)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vectors)
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	p := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[0.5, 0.25]]`))
	})

	v, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)
}

func TestTEIProvider_Errors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		p := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		_, err := p.EmbedDocuments(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = p.EmbedQuery(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("server error is a status error", func(t *testing.T) {
		p := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})
		_, err := p.EmbedDocuments(context.Background(), []string{"a"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusServiceUnavailable, se.Code)
		assert.True(t, isRetryableError(err))
	})

	t.Run("count mismatch", func(t *testing.T) {
		p := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[[1, 2]]`))
		})
		_, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}
