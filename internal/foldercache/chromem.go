package foldercache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// CollectionName is the chromem collection holding folder embeddings.
const CollectionName = "folder_embeddings"

// rootID stands in for the vault root, whose path is empty.
const rootID = "/"

var errNoEmbeddingFunc = errors.New("folder cache documents carry their own embeddings")

// Chromem persists folder embeddings in a chromem-go database. Documents are
// keyed by folder path and written through on every Put.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewChromem opens or creates a persistent database in dir. An empty dir
// keeps the database in memory.
func NewChromem(dir string, compress bool, logger *zap.Logger) (*Chromem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
		db, err = chromem.NewPersistentDB(dir, compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(CollectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", CollectionName, err)
	}

	logger.Debug("chromem folder cache ready",
		zap.String("path", dir),
		zap.Bool("compress", compress),
		zap.Int("folders", collection.Count()))

	return &Chromem{db: db, collection: collection, logger: logger}, nil
}

func docID(path string) string {
	if path == "" {
		return rootID
	}
	return path
}

// Get returns the cached embedding for path.
func (c *Chromem) Get(ctx context.Context, path string) ([]float32, bool, error) {
	id := docID(path)
	doc, err := c.collection.GetByID(ctx, id)
	if err != nil {
		// chromem reports a missing ID as an error
		return nil, false, nil
	}
	if dim, ok := doc.Metadata["dim"]; ok {
		if n, err := strconv.Atoi(dim); err == nil && n != len(doc.Embedding) {
			return nil, false, fmt.Errorf("cached folder %s has %d dimensions, metadata says %d", id, len(doc.Embedding), n)
		}
	}
	return vecmath.Clone(doc.Embedding), true, nil
}

// Put stores the embedding for path. Zero vectors are skipped since they
// cannot be normalized.
func (c *Chromem) Put(ctx context.Context, path string, embedding []float32) error {
	if vecmath.IsZero(embedding) {
		c.logger.Debug("skipping zero folder embedding", zap.String("folder", path))
		return nil
	}
	id := docID(path)
	err := c.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Metadata:  map[string]string{"dim": strconv.Itoa(len(embedding))},
		Embedding: vecmath.Clone(embedding),
		Content:   id,
	})
	if err != nil {
		return fmt.Errorf("storing folder %s: %w", id, err)
	}
	return nil
}

// Flush is a no-op: chromem persists every write.
func (c *Chromem) Flush(context.Context) error {
	return nil
}

// Len returns the number of cached folders.
func (c *Chromem) Len() int {
	return c.collection.Count()
}
