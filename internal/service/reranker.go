package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragdex/internal/ai"
	"github.com/xxxsen/ragdex/internal/model"
)

type RerankerConfig struct {
	ScoreThreshold    float64
	DistanceThreshold float64
	TopK              int
	Workers           int
}

type RerankResult struct {
	Candidates []*model.Candidate
	Stats      model.SearchStats
	Degraded   bool
}

// Reranker refines vector candidates in three stages: a distance gate,
// LLM relevance scoring on a bounded worker pool, and a score
// filter/rank. The worker bound is shared by all searches going through
// the same instance.
type Reranker struct {
	scorer *ai.RelevanceScorer
	cfg    RerankerConfig
	sem    chan struct{}
}

func NewReranker(scorer *ai.RelevanceScorer, cfg RerankerConfig) *Reranker {
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 5.0
	}
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = 195.0
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Reranker{
		scorer: scorer,
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.Workers),
	}
}

func (r *Reranker) ScoringConfigured() bool {
	return r.scorer != nil
}

func (r *Reranker) Rerank(ctx context.Context, question string, cands []*model.Candidate, distanceThreshold float64, topK int) (*RerankResult, error) {
	if distanceThreshold <= 0 {
		distanceThreshold = r.cfg.DistanceThreshold
	}
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	stats := model.SearchStats{InitialCount: len(cands)}

	// stage 1: distance gate, strict less-than
	survivors := make([]*model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Distance < distanceThreshold {
			clone := *c
			survivors = append(survivors, &clone)
		}
	}
	stats.AfterDistanceFilter = len(survivors)
	if len(survivors) == 0 {
		return &RerankResult{Candidates: []*model.Candidate{}, Stats: stats}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if r.scorer == nil {
		stats.RerankingTimeMs = time.Since(start).Milliseconds()
		return r.degrade(survivors, topK, stats), nil
	}

	// stage 2: LLM scoring on the bounded pool
	scoreErrs := make([]error, len(survivors))
	var wg sync.WaitGroup
	for i, cand := range survivors {
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		}
		wg.Add(1)
		go func(i int, cand *model.Candidate) {
			defer wg.Done()
			defer func() { <-r.sem }()
			score, err := r.scorer.Score(ctx, question, cand.Chunk.Text)
			if err != nil {
				scoreErrs[i] = err
				cand.RerankScore = 0
				cand.Scored = errors.Is(err, ai.ErrScoreParse)
				return
			}
			cand.RerankScore = score
			cand.Scored = true
		}(i, cand)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callErrors := 0
	for _, err := range scoreErrs {
		if err == nil {
			continue
		}
		if errors.Is(err, ai.ErrScoreParse) {
			stats.ParseFailures++
			continue
		}
		stats.ScoreErrors++
		callErrors++
	}
	stats.RerankingTimeMs = time.Since(start).Milliseconds()

	if callErrors == len(survivors) {
		logutil.GetLogger(ctx).Warn("all relevance scoring calls failed, degrading to distance order",
			zap.Int("candidates", len(survivors)))
		return r.degrade(survivors, topK, stats), nil
	}

	// stage 3: score filter, rank, truncate
	kept := make([]*model.Candidate, 0, len(survivors))
	for _, c := range survivors {
		if c.RerankScore >= r.cfg.ScoreThreshold {
			kept = append(kept, c)
		}
	}
	stats.AfterRerankFilter = len(kept)
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].RerankScore != kept[j].RerankScore {
			return kept[i].RerankScore > kept[j].RerankScore
		}
		return kept[i].Distance < kept[j].Distance
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}
	stats.FinalCount = len(kept)
	return &RerankResult{Candidates: kept, Stats: stats}, nil
}

// degrade returns distance-ordered unscored candidates. Callers never
// see an empty result when the distance gate passed something.
func (r *Reranker) degrade(survivors []*model.Candidate, topK int, stats model.SearchStats) *RerankResult {
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].Distance < survivors[j].Distance })
	if len(survivors) > topK {
		survivors = survivors[:topK]
	}
	for _, c := range survivors {
		c.RerankScore = 0
		c.Scored = false
	}
	stats.FinalCount = len(survivors)
	return &RerankResult{Candidates: survivors, Stats: stats, Degraded: true}
}
