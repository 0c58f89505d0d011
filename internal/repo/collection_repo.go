package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragdex/internal/model"
	"github.com/xxxsen/ragdex/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
)

type CollectionRepo struct {
	db *sql.DB
}

func NewCollectionRepo(db *sql.DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

func (r *CollectionRepo) Create(ctx context.Context, c *model.CollectionInfo) error {
	data := map[string]interface{}{
		"name":               c.Name,
		"dimension":          c.Dimension,
		"distance_threshold": c.DistanceThreshold,
		"ctime":              c.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("collections", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *CollectionRepo) GetByName(ctx context.Context, name string) (*model.CollectionInfo, error) {
	sqlStr := `
		SELECT c.id, c.name, c.dimension, c.distance_threshold, c.ctime, COUNT(ch.id)
		FROM collections c
		LEFT JOIN chunks ch ON ch.collection_id = c.id
		WHERE c.name = ?
		GROUP BY c.id, c.name, c.dimension, c.distance_threshold, c.ctime
	`
	args := []interface{}{name}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var c model.CollectionInfo
	if err := row.Scan(&c.ID, &c.Name, &c.Dimension, &c.DistanceThreshold, &c.Ctime, &c.ChunkCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrCollectionNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CollectionRepo) ListAll(ctx context.Context) ([]*model.CollectionInfo, error) {
	sqlStr := `
		SELECT c.id, c.name, c.dimension, c.distance_threshold, c.ctime, COUNT(ch.id)
		FROM collections c
		LEFT JOIN chunks ch ON ch.collection_id = c.id
		GROUP BY c.id, c.name, c.dimension, c.distance_threshold, c.ctime
		ORDER BY c.name
	`
	rows, err := r.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*model.CollectionInfo, 0)
	for rows.Next() {
		var c model.CollectionInfo
		if err := rows.Scan(&c.ID, &c.Name, &c.Dimension, &c.DistanceThreshold, &c.Ctime, &c.ChunkCount); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *CollectionRepo) Delete(ctx context.Context, name string) error {
	sqlStr, args, err := builder.BuildDelete("collections", map[string]interface{}{"name": name})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrCollectionNotFound
	}
	return nil
}

func (r *CollectionRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collections`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
