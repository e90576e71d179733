package embeddings

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DefaultBatchSize is the number of snippets embedded per request.
const DefaultBatchSize = 10

// BatchFunc receives each embedded batch, keyed by document ID.
type BatchFunc func(ctx context.Context, batch map[string][]float32) error

// BatchStats summarizes an EmbedAll run.
type BatchStats struct {
	Embedded int
	Batches  int
	Failed   []string
}

// EmbedAll embeds texts in batches ordered by ID and hands every successful
// batch to onBatch so progress survives an interrupted run. A failed batch is
// logged and skipped; its IDs are reported in BatchStats.Failed. An error
// from onBatch or a cancelled context stops the run.
func EmbedAll(ctx context.Context, p Provider, texts map[string]string, batchSize int, onBatch BatchFunc, logger *zap.Logger) (BatchStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ids := make([]string, 0, len(texts))
	for id, text := range texts {
		if text != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var stats BatchStats
	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := min(start+batchSize, len(ids))
		batchIDs := ids[start:end]
		batchTexts := make([]string, len(batchIDs))
		for i, id := range batchIDs {
			batchTexts[i] = texts[id]
		}

		vectors, err := p.EmbedDocuments(ctx, batchTexts)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			logger.Warn("embedding batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batchIDs)),
				zap.Error(err))
			stats.Failed = append(stats.Failed, batchIDs...)
			continue
		}

		batch := make(map[string][]float32, len(batchIDs))
		for i, id := range batchIDs {
			batch[id] = vectors[i]
		}
		if onBatch != nil {
			if err := onBatch(ctx, batch); err != nil {
				return stats, fmt.Errorf("persisting batch: %w", err)
			}
		}
		stats.Embedded += len(batchIDs)
		stats.Batches++
		logger.Debug("embedded batch",
			zap.Int("embedded", stats.Embedded),
			zap.Int("total", len(ids)))
	}
	return stats, nil
}
