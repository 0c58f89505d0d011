package vecindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/ragdex/internal/model"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
)

// memoryStore is an exact brute-force engine. It backs tests and small
// single-process deployments where running Postgres is not worth it.
type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	info   model.CollectionInfo
	chunks map[string]*memChunk
}

type memChunk struct {
	chunk     model.Chunk
	embedding []float32
}

func newMemoryStore(args StoreArgs) (Store, error) {
	return &memoryStore{collections: map[string]*memCollection{}}, nil
}

func chunkKey(source string, index int) string {
	return fmt.Sprintf("%s#%d", source, index)
}

func (s *memoryStore) EnsureCollection(ctx context.Context, name string, dimension int, distanceThreshold float64) (*model.CollectionInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", appErr.ErrInvalid)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: collection dimension must be positive", appErr.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		if col.info.Dimension != dimension {
			return nil, fmt.Errorf("%w: collection %s has dimension %d, requested %d",
				appErr.ErrDimensionMismatch, name, col.info.Dimension, dimension)
		}
		info := col.info
		info.ChunkCount = int64(len(col.chunks))
		return &info, nil
	}
	if distanceThreshold <= 0 {
		distanceThreshold = DefaultDistanceThreshold
	}
	col := &memCollection{
		info: model.CollectionInfo{
			Name:              name,
			Dimension:         dimension,
			DistanceThreshold: distanceThreshold,
			Ctime:             time.Now().Unix(),
		},
		chunks: map[string]*memChunk{},
	}
	s.collections[name] = col
	info := col.info
	return &info, nil
}

func (s *memoryStore) GetCollection(ctx context.Context, name string) (*model.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, appErr.ErrCollectionNotFound
	}
	info := col.info
	info.ChunkCount = int64(len(col.chunks))
	return &info, nil
}

func (s *memoryStore) ListCollections(ctx context.Context) ([]*model.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*model.CollectionInfo, 0, len(s.collections))
	for _, col := range s.collections {
		info := col.info
		info.ChunkCount = int64(len(col.chunks))
		items = append(items, &info)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *memoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return appErr.ErrCollectionNotFound
	}
	delete(s.collections, name)
	return nil
}

func (s *memoryStore) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := int64(len(s.collections))
	s.collections = map[string]*memCollection{}
	return count, nil
}

func (s *memoryStore) Upsert(ctx context.Context, collection string, chunks []*model.Chunk, embeddings [][]float32) (int, error) {
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d chunks but %d embeddings", appErr.ErrInvalid, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return 0, appErr.ErrCollectionNotFound
	}
	for i, emb := range embeddings {
		if len(emb) != col.info.Dimension {
			return 0, fmt.Errorf("%w: chunk %s#%d has %d values, collection %s expects %d",
				appErr.ErrDimensionMismatch, chunks[i].Source, chunks[i].ChunkIndex, len(emb), collection, col.info.Dimension)
		}
	}
	for i, chunk := range chunks {
		emb := make([]float32, len(embeddings[i]))
		copy(emb, embeddings[i])
		stored := *chunk
		col.chunks[chunkKey(chunk.Source, chunk.ChunkIndex)] = &memChunk{chunk: stored, embedding: emb}
	}
	return len(chunks), nil
}

func (s *memoryStore) DeleteSource(ctx context.Context, collection string, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return 0, appErr.ErrCollectionNotFound
	}
	var deleted int64
	for key, item := range col.chunks {
		if item.chunk.Source == source {
			delete(col.chunks, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]*model.Candidate, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", appErr.ErrInvalid)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, appErr.ErrCollectionNotFound
	}
	if len(embedding) != col.info.Dimension {
		return nil, fmt.Errorf("%w: query embedding has %d values, collection %s expects %d",
			appErr.ErrDimensionMismatch, len(embedding), collection, col.info.Dimension)
	}
	items := make([]*model.Candidate, 0, len(col.chunks))
	for _, item := range col.chunks {
		chunk := item.chunk
		items = append(items, &model.Candidate{
			Chunk:    &chunk,
			Distance: euclideanDistance(embedding, item.embedding),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })
	if len(items) > topK {
		items = items[:topK]
	}
	return items, nil
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func init() {
	Register("memory", newMemoryStore)
}
