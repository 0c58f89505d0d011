package vecindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragdex/internal/model"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := New("memory", StoreArgs{})
	require.NoError(t, err)
	return store
}

func TestMemoryStoreEnsureCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	info, err := store.EnsureCollection(ctx, "docs", 768, 0)
	require.NoError(t, err)
	require.Equal(t, "docs", info.Name)
	require.Equal(t, 768, info.Dimension)
	require.Equal(t, DefaultDistanceThreshold, info.DistanceThreshold)
	require.NotZero(t, info.Ctime)

	// Idempotent for the same dimension.
	again, err := store.EnsureCollection(ctx, "docs", 768, 100)
	require.NoError(t, err)
	require.Equal(t, DefaultDistanceThreshold, again.DistanceThreshold)

	// A different dimension cannot silently repin the collection.
	_, err = store.EnsureCollection(ctx, "docs", 1024, 0)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	_, err = store.EnsureCollection(ctx, "", 768, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = store.EnsureCollection(ctx, "bad", 0, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestMemoryStoreGetCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetCollection(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)

	_, err = store.EnsureCollection(ctx, "docs", 3, 42)
	require.NoError(t, err)
	info, err := store.GetCollection(ctx, "docs")
	require.NoError(t, err)
	require.Equal(t, 42.0, info.DistanceThreshold)
	require.Zero(t, info.ChunkCount)
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.EnsureCollection(ctx, "docs", 3, 0)
	require.NoError(t, err)

	chunks := []*model.Chunk{
		{Source: "a.md", ChunkIndex: 0, Text: "first"},
		{Source: "a.md", ChunkIndex: 1, Text: "second"},
	}
	embeddings := [][]float32{{1, 0, 0}, {0, 1, 0}}

	n, err := store.Upsert(ctx, "docs", chunks, embeddings)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	info, err := store.GetCollection(ctx, "docs")
	require.NoError(t, err)
	require.EqualValues(t, 2, info.ChunkCount)

	// Same source and index replaces instead of duplicating.
	n, err = store.Upsert(ctx, "docs", chunks[:1], [][]float32{{0, 0, 1}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	info, err = store.GetCollection(ctx, "docs")
	require.NoError(t, err)
	require.EqualValues(t, 2, info.ChunkCount)
}

func TestMemoryStoreUpsertErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.EnsureCollection(ctx, "docs", 3, 0)
	require.NoError(t, err)

	chunk := &model.Chunk{Source: "a.md", ChunkIndex: 0, Text: "x"}

	_, err = store.Upsert(ctx, "docs", []*model.Chunk{chunk}, nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = store.Upsert(ctx, "missing", []*model.Chunk{chunk}, [][]float32{{1, 0, 0}})
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)

	_, err = store.Upsert(ctx, "docs", []*model.Chunk{chunk}, [][]float32{{1, 0}})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	// A failed batch writes nothing.
	info, err := store.GetCollection(ctx, "docs")
	require.NoError(t, err)
	require.Zero(t, info.ChunkCount)
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.EnsureCollection(ctx, "docs", 3, 0)
	require.NoError(t, err)

	chunks := []*model.Chunk{
		{Source: "far.md", ChunkIndex: 0, Text: "far"},
		{Source: "near.md", ChunkIndex: 0, Text: "near"},
		{Source: "exact.md", ChunkIndex: 0, Text: "exact"},
	}
	embeddings := [][]float32{{0, 3, 4}, {0.5, 0, 0}, {1, 0, 0}}
	_, err = store.Upsert(ctx, "docs", chunks, embeddings)
	require.NoError(t, err)

	cands, err := store.Query(ctx, "docs", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	require.Equal(t, "exact.md", cands[0].Chunk.Source)
	require.Zero(t, cands[0].Distance)
	require.Equal(t, "near.md", cands[1].Chunk.Source)
	require.InDelta(t, 0.5, cands[1].Distance, 1e-6)
	require.Equal(t, "far.md", cands[2].Chunk.Source)
	// [1,0,0] to [0,3,4] is sqrt(1+9+16).
	require.InDelta(t, 5.0990195, cands[2].Distance, 1e-6)

	topTwo, err := store.Query(ctx, "docs", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, topTwo, 2)

	_, err = store.Query(ctx, "docs", []float32{1, 0}, 10)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	_, err = store.Query(ctx, "docs", []float32{1, 0, 0}, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = store.Query(ctx, "missing", []float32{1, 0, 0}, 10)
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)
}

func TestMemoryStoreDeleteSource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.EnsureCollection(ctx, "docs", 2, 0)
	require.NoError(t, err)

	chunks := []*model.Chunk{
		{Source: "keep.md", ChunkIndex: 0, Text: "a"},
		{Source: "drop.md", ChunkIndex: 0, Text: "b"},
		{Source: "drop.md", ChunkIndex: 1, Text: "c"},
	}
	embeddings := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	_, err = store.Upsert(ctx, "docs", chunks, embeddings)
	require.NoError(t, err)

	deleted, err := store.DeleteSource(ctx, "docs", "drop.md")
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	info, err := store.GetCollection(ctx, "docs")
	require.NoError(t, err)
	require.EqualValues(t, 1, info.ChunkCount)

	// Deleting an unknown source is a no-op, not an error.
	deleted, err = store.DeleteSource(ctx, "docs", "never-indexed.md")
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := store.EnsureCollection(ctx, name, 2, 0)
		require.NoError(t, err)
	}

	items, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "alpha", items[0].Name)
	require.Equal(t, "mid", items[1].Name)
	require.Equal(t, "zeta", items[2].Name)

	require.NoError(t, store.DeleteCollection(ctx, "mid"))
	require.ErrorIs(t, store.DeleteCollection(ctx, "mid"), appErr.ErrCollectionNotFound)

	removed, err := store.ClearAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
	items, err = store.ListCollections(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestEuclideanDistance(t *testing.T) {
	require.Zero(t, euclideanDistance([]float32{1, 2, 3}, []float32{1, 2, 3}))
	require.InDelta(t, 5.0, euclideanDistance([]float32{0, 0}, []float32{3, 4}), 1e-9)
}
