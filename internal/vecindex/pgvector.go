package vecindex

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/ragdex/internal/model"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
	"github.com/xxxsen/ragdex/internal/repo"
)

const upsertBatchSize = 100

type pgvectorStore struct {
	collections *repo.CollectionRepo
	chunks      *repo.ChunkRepo
}

func newPgvectorStore(args StoreArgs) (Store, error) {
	if args.DB == nil {
		return nil, fmt.Errorf("pgvector engine requires a database handle")
	}
	return &pgvectorStore{
		collections: repo.NewCollectionRepo(args.DB),
		chunks:      repo.NewChunkRepo(args.DB),
	}, nil
}

func (s *pgvectorStore) EnsureCollection(ctx context.Context, name string, dimension int, distanceThreshold float64) (*model.CollectionInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", appErr.ErrInvalid)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: collection dimension must be positive", appErr.ErrInvalid)
	}
	existing, err := s.collections.GetByName(ctx, name)
	if err == nil {
		if existing.Dimension != dimension {
			return nil, fmt.Errorf("%w: collection %s has dimension %d, requested %d",
				appErr.ErrDimensionMismatch, name, existing.Dimension, dimension)
		}
		return existing, nil
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}
	if distanceThreshold <= 0 {
		distanceThreshold = DefaultDistanceThreshold
	}
	info := &model.CollectionInfo{
		Name:              name,
		Dimension:         dimension,
		DistanceThreshold: distanceThreshold,
		Ctime:             time.Now().Unix(),
	}
	if err := s.collections.Create(ctx, info); err != nil {
		if appErr.IsConflict(err) {
			// lost a create race, reread and revalidate
			return s.EnsureCollection(ctx, name, dimension, distanceThreshold)
		}
		return nil, err
	}
	return s.collections.GetByName(ctx, name)
}

func (s *pgvectorStore) GetCollection(ctx context.Context, name string) (*model.CollectionInfo, error) {
	return s.collections.GetByName(ctx, name)
}

func (s *pgvectorStore) ListCollections(ctx context.Context) ([]*model.CollectionInfo, error) {
	return s.collections.ListAll(ctx)
}

func (s *pgvectorStore) DeleteCollection(ctx context.Context, name string) error {
	return s.collections.Delete(ctx, name)
}

func (s *pgvectorStore) ClearAll(ctx context.Context) (int64, error) {
	return s.collections.DeleteAll(ctx)
}

func (s *pgvectorStore) Upsert(ctx context.Context, collection string, chunks []*model.Chunk, embeddings [][]float32) (int, error) {
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d chunks but %d embeddings", appErr.ErrInvalid, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	info, err := s.collections.GetByName(ctx, collection)
	if err != nil {
		return 0, err
	}
	for i, emb := range embeddings {
		if len(emb) != info.Dimension {
			return 0, fmt.Errorf("%w: chunk %s#%d has %d values, collection %s expects %d",
				appErr.ErrDimensionMismatch, chunks[i].Source, chunks[i].ChunkIndex, len(emb), collection, info.Dimension)
		}
	}
	now := time.Now().Unix()
	total := 0
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		n, err := s.chunks.UpsertBatch(ctx, info.ID, chunks[start:end], embeddings[start:end], now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *pgvectorStore) DeleteSource(ctx context.Context, collection string, source string) (int64, error) {
	info, err := s.collections.GetByName(ctx, collection)
	if err != nil {
		return 0, err
	}
	return s.chunks.DeleteBySource(ctx, info.ID, source)
}

func (s *pgvectorStore) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]*model.Candidate, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", appErr.ErrInvalid)
	}
	info, err := s.collections.GetByName(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(embedding) != info.Dimension {
		return nil, fmt.Errorf("%w: query embedding has %d values, collection %s expects %d",
			appErr.ErrDimensionMismatch, len(embedding), collection, info.Dimension)
	}
	return s.chunks.QueryNearest(ctx, info.ID, embedding, topK)
}

func init() {
	Register("pgvector", newPgvectorStore)
}
