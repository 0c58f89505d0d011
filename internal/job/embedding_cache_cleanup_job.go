package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragdex/internal/repo"
	"go.uber.org/zap"
)

// EmbeddingCacheCleanupJob expires persisted embedding cache rows that
// nothing has refreshed for maxAgeDays. Keeps the cache table from
// accumulating vectors for text that was reindexed or deleted long ago.
type EmbeddingCacheCleanupJob struct {
	repo       *repo.EmbeddingCacheRepo
	maxAgeDays int
}

func NewEmbeddingCacheCleanupJob(repo *repo.EmbeddingCacheRepo, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, maxAgeDays: maxAgeDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).Unix()
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache cleaned",
		zap.Int64("deleted", deleted),
		zap.Int("max_age_days", maxAgeDays),
	)
	return nil
}
