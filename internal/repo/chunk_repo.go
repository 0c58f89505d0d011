package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/ragdex/internal/model"
	"github.com/xxxsen/ragdex/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
)

const upsertChunkConflictClause = ` ON CONFLICT (collection_id, source, chunk_index) DO UPDATE SET
	content = EXCLUDED.content,
	start_char = EXCLUDED.start_char,
	end_char = EXCLUDED.end_char,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding,
	ctime = EXCLUDED.ctime`

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertBatch(ctx context.Context, collectionID int64, chunks []*model.Chunk, embeddings [][]float32, now int64) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	rows := make([]map[string]interface{}, 0, len(chunks))
	for i, chunk := range chunks {
		var metadata interface{}
		if len(chunk.Metadata) > 0 {
			blob, err := json.Marshal(chunk.Metadata)
			if err != nil {
				return 0, err
			}
			metadata = string(blob)
		}
		rows = append(rows, map[string]interface{}{
			"collection_id": collectionID,
			"source":        chunk.Source,
			"chunk_index":   chunk.ChunkIndex,
			"content":       chunk.Text,
			"start_char":    chunk.StartChar,
			"end_char":      chunk.EndChar,
			"metadata":      metadata,
			"embedding":     pgvector.NewVector(embeddings[i]),
			"ctime":         now,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", rows)
	if err != nil {
		return 0, err
	}
	sqlStr += upsertChunkConflictClause
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsForeignKeyViolation(err) {
			return 0, appErr.ErrCollectionNotFound
		}
		return 0, err
	}
	return len(chunks), nil
}

func (r *ChunkRepo) QueryNearest(ctx context.Context, collectionID int64, embedding []float32, topK int) ([]*model.Candidate, error) {
	sqlStr := `
		SELECT source, chunk_index, content, start_char, end_char, metadata, embedding <-> ? AS distance
		FROM chunks
		WHERE collection_id = ?
		ORDER BY embedding <-> ?
		LIMIT ?
	`
	vec := pgvector.NewVector(embedding)
	args := []interface{}{vec, collectionID, vec, topK}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*model.Candidate, 0, topK)
	for rows.Next() {
		var chunk model.Chunk
		var metadata sql.NullString
		var distance float64
		if err := rows.Scan(&chunk.Source, &chunk.ChunkIndex, &chunk.Text, &chunk.StartChar, &chunk.EndChar, &metadata, &distance); err != nil {
			return nil, err
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &chunk.Metadata); err != nil {
				return nil, err
			}
		}
		items = append(items, &model.Candidate{Chunk: &chunk, Distance: distance})
	}
	return items, rows.Err()
}

func (r *ChunkRepo) DeleteBySource(ctx context.Context, collectionID int64, source string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("chunks", map[string]interface{}{
		"collection_id": collectionID,
		"source":        source,
	})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ChunkRepo) CountByCollection(ctx context.Context, collectionID int64) (int64, error) {
	sqlStr := `SELECT COUNT(*) FROM chunks WHERE collection_id = ?`
	args := []interface{}{collectionID}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
