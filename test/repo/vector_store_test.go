package repo_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragdex/internal/model"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
	"github.com/xxxsen/ragdex/internal/vecindex"
	"github.com/xxxsen/ragdex/test/testutil"
)

func newTestCollection() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "test_" + hex.EncodeToString(buf)
}

func openStore(t *testing.T) (vecindex.Store, func()) {
	t.Helper()
	conn, cleanup := testutil.OpenTestDB(t)
	store, err := vecindex.New("pgvector", vecindex.StoreArgs{DB: conn})
	require.NoError(t, err)
	return store, cleanup
}

func chunkOf(source string, index int, text string) *model.Chunk {
	return &model.Chunk{
		Source:     source,
		ChunkIndex: index,
		Text:       text,
		StartChar:  0,
		EndChar:    len(text),
		Metadata:   map[string]string{"file_type": "md"},
	}
}

func TestPgvectorCollectionLifecycle(t *testing.T) {
	store, cleanup := openStore(t)
	defer cleanup()
	ctx := context.Background()
	name := newTestCollection()
	defer func() { _ = store.DeleteCollection(ctx, name) }()

	info, err := store.EnsureCollection(ctx, name, 3, 0)
	require.NoError(t, err)
	require.Equal(t, name, info.Name)
	require.Equal(t, 3, info.Dimension)
	require.Equal(t, vecindex.DefaultDistanceThreshold, info.DistanceThreshold)
	require.NotZero(t, info.Ctime)

	// ensure is idempotent and keeps the stored threshold
	again, err := store.EnsureCollection(ctx, name, 3, 42.0)
	require.NoError(t, err)
	require.Equal(t, vecindex.DefaultDistanceThreshold, again.DistanceThreshold)

	_, err = store.EnsureCollection(ctx, name, 4, 0)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	got, err := store.GetCollection(ctx, name)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.ChunkCount)

	require.NoError(t, store.DeleteCollection(ctx, name))
	_, err = store.GetCollection(ctx, name)
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)
	require.ErrorIs(t, store.DeleteCollection(ctx, name), appErr.ErrCollectionNotFound)
}

func TestPgvectorUpsertAndQuery(t *testing.T) {
	store, cleanup := openStore(t)
	defer cleanup()
	ctx := context.Background()
	name := newTestCollection()
	defer func() { _ = store.DeleteCollection(ctx, name) }()

	_, err := store.EnsureCollection(ctx, name, 3, 0)
	require.NoError(t, err)

	chunks := []*model.Chunk{
		chunkOf("a.md", 0, "exact match"),
		chunkOf("a.md", 1, "near match"),
		chunkOf("b.md", 0, "far away"),
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{5, 5, 5},
	}
	n, err := store.Upsert(ctx, name, chunks, embeddings)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	info, err := store.GetCollection(ctx, name)
	require.NoError(t, err)
	require.Equal(t, int64(3), info.ChunkCount)

	got, err := store.Query(ctx, name, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "exact match", got[0].Chunk.Text)
	require.InDelta(t, 0.0, got[0].Distance, 1e-6)
	require.Equal(t, "near match", got[1].Chunk.Text)
	require.InDelta(t, 1.4142135, got[1].Distance, 1e-5)
	require.Equal(t, "far away", got[2].Chunk.Text)
	require.InDelta(t, 8.1240384, got[2].Distance, 1e-5)
	require.Equal(t, "md", got[0].Chunk.Metadata["file_type"])

	// same source and index replaces the row instead of adding one
	n, err = store.Upsert(ctx, name,
		[]*model.Chunk{chunkOf("a.md", 0, "replacement text")},
		[][]float32{{1, 0, 0}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	info, err = store.GetCollection(ctx, name)
	require.NoError(t, err)
	require.Equal(t, int64(3), info.ChunkCount)

	got, err = store.Query(ctx, name, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "replacement text", got[0].Chunk.Text)

	_, err = store.Query(ctx, name, []float32{1, 0}, 5)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	_, err = store.Query(ctx, name, []float32{1, 0, 0}, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestPgvectorUpsertValidation(t *testing.T) {
	store, cleanup := openStore(t)
	defer cleanup()
	ctx := context.Background()
	name := newTestCollection()
	defer func() { _ = store.DeleteCollection(ctx, name) }()

	_, err := store.EnsureCollection(ctx, name, 3, 0)
	require.NoError(t, err)

	_, err = store.Upsert(ctx, name,
		[]*model.Chunk{chunkOf("a.md", 0, "wrong width")},
		[][]float32{{1, 0}})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	_, err = store.Upsert(ctx, name, []*model.Chunk{chunkOf("a.md", 0, "odd one out")}, nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = store.Upsert(ctx, newTestCollection(),
		[]*model.Chunk{chunkOf("a.md", 0, "no such collection")},
		[][]float32{{1, 0, 0}})
	require.ErrorIs(t, err, appErr.ErrCollectionNotFound)

	info, err := store.GetCollection(ctx, name)
	require.NoError(t, err)
	require.Equal(t, int64(0), info.ChunkCount)
}

func TestPgvectorDeleteSource(t *testing.T) {
	store, cleanup := openStore(t)
	defer cleanup()
	ctx := context.Background()
	name := newTestCollection()
	defer func() { _ = store.DeleteCollection(ctx, name) }()

	_, err := store.EnsureCollection(ctx, name, 2, 0)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, name,
		[]*model.Chunk{
			chunkOf("a.md", 0, "first"),
			chunkOf("a.md", 1, "second"),
			chunkOf("b.md", 0, "keeper"),
		},
		[][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	deleted, err := store.DeleteSource(ctx, name, "a.md")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	deleted, err = store.DeleteSource(ctx, name, "missing.md")
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)

	info, err := store.GetCollection(ctx, name)
	require.NoError(t, err)
	require.Equal(t, int64(1), info.ChunkCount)
}

func TestPgvectorListAndClear(t *testing.T) {
	store, cleanup := openStore(t)
	defer cleanup()
	ctx := context.Background()

	names := []string{newTestCollection(), newTestCollection()}
	for i, name := range names {
		_, err := store.EnsureCollection(ctx, name, 2+i, 0)
		require.NoError(t, err)
	}
	defer func() {
		for _, name := range names {
			_ = store.DeleteCollection(ctx, name)
		}
	}()

	infos, err := store.ListCollections(ctx)
	require.NoError(t, err)
	listed := make(map[string]bool, len(infos))
	for _, info := range infos {
		listed[info.Name] = true
	}
	for _, name := range names {
		require.True(t, listed[name], fmt.Sprintf("collection %s missing from list", name))
	}

	removed, err := store.ClearAll(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(2))

	infos, err = store.ListCollections(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)
}
