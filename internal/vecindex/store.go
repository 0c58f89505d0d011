package vecindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/ragdex/internal/model"
)

const DefaultDistanceThreshold = 195.0

// Store keeps named collections of chunk vectors and answers nearest
// neighbour queries by euclidean distance. A collection's dimension is
// fixed at creation and every vector passing through is validated
// against it.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dimension int, distanceThreshold float64) (*model.CollectionInfo, error)
	GetCollection(ctx context.Context, name string) (*model.CollectionInfo, error)
	ListCollections(ctx context.Context) ([]*model.CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error
	ClearAll(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, collection string, chunks []*model.Chunk, embeddings [][]float32) (int, error)
	DeleteSource(ctx context.Context, collection string, source string) (int64, error)
	Query(ctx context.Context, collection string, embedding []float32, topK int) ([]*model.Candidate, error)
}

// StoreArgs carries engine dependencies. Only the pgvector engine needs
// the database handle.
type StoreArgs struct {
	DB *sql.DB
}

type Factory func(args StoreArgs) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(engine string, args StoreArgs) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(engine))
	if key == "" {
		return nil, fmt.Errorf("vector_store.engine is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store engine: %s", engine)
	}
	return factory(args)
}
