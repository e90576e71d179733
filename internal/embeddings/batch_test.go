package embeddings

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedAll_BatchesInIDOrder(t *testing.T) {
	fp := &fakeProvider{dim: 2}
	texts := map[string]string{
		"c.md": "ccc",
		"a.md": "a",
		"b.md": "bb",
		"d.md": "",
		"e.md": "eeeee",
	}

	var batches []map[string][]float32
	stats, err := EmbedAll(context.Background(), fp, texts, 2, func(_ context.Context, b map[string][]float32) error {
		batches = append(batches, b)
		return nil
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Embedded)
	assert.Equal(t, 2, stats.Batches)
	assert.Empty(t, stats.Failed)
	require.Len(t, fp.inputs, 2)
	assert.Equal(t, []string{"a", "bb"}, fp.inputs[0])
	assert.Equal(t, []string{"ccc", "eeeee"}, fp.inputs[1])
	assert.Equal(t, float32(5), batches[1]["e.md"][0])
}

func TestEmbedAll_SkipsFailedBatch(t *testing.T) {
	fp := &fakeProvider{dim: 2, errs: []error{&StatusError{Code: http.StatusBadRequest}}}
	texts := map[string]string{"a.md": "a", "b.md": "b", "c.md": "c"}

	var persisted int
	stats, err := EmbedAll(context.Background(), fp, texts, 2, func(_ context.Context, b map[string][]float32) error {
		persisted += len(b)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, stats.Failed)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 1, persisted)
}

func TestEmbedAll_PersistErrorStops(t *testing.T) {
	fp := &fakeProvider{dim: 2}
	texts := map[string]string{"a.md": "a", "b.md": "b"}
	boom := errors.New("disk full")

	_, err := EmbedAll(context.Background(), fp, texts, 1, func(context.Context, map[string][]float32) error {
		return boom
	}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fp.calls)
}

func TestEmbedAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EmbedAll(ctx, &fakeProvider{dim: 2}, map[string]string{"a.md": "a"}, 1, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
