package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragdex/internal/ai"
	"github.com/xxxsen/ragdex/internal/model"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
	"github.com/xxxsen/ragdex/internal/vecindex"
)

type RagServiceConfig struct {
	TopK     int
	InitialK int
}

type SearchRequest struct {
	Question   string
	Collection string
	TopK       int
	InitialK   int
}

type HealthStatus struct {
	EmbedModel       string `json:"embed_model"`
	EmbedDimension   int    `json:"embed_dimension"`
	EmbedAvailable   bool   `json:"embed_available"`
	EmbedError       string `json:"embed_error,omitempty"`
	ScorerConfigured bool   `json:"scorer_configured"`
}

type RagService struct {
	embedder ai.IEmbedder
	store    vecindex.Store
	reranker *Reranker
	cfg      RagServiceConfig
}

func NewRagService(embedder ai.IEmbedder, store vecindex.Store, reranker *Reranker, cfg RagServiceConfig) *RagService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.InitialK <= 0 {
		cfg.InitialK = 20
	}
	return &RagService{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Search runs the full pipeline: embed the question, pull the closest
// initialK chunks, rerank them, and assemble the citation-ready result.
func (s *RagService) Search(ctx context.Context, req *SearchRequest) (*model.SearchResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	collection := strings.TrimSpace(req.Collection)
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", appErr.ErrInvalid)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	initialK := req.InitialK
	if initialK <= 0 {
		initialK = s.cfg.InitialK
	}
	if initialK < topK {
		initialK = topK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("collection", collection), zap.Int("top_k", topK))

	info, err := s.store.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if s.embedder.Dimension() != info.Dimension {
		return nil, fmt.Errorf("%w: embedder %s produces %d values, collection %s expects %d",
			appErr.ErrDimensionMismatch, s.embedder.ModelName(), s.embedder.Dimension(), collection, info.Dimension)
	}

	queryEmb, err := s.embedder.Embed(ctx, question, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("failed to embed search question", zap.Error(err))
		if errors.Is(err, ai.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", appErr.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	cands, err := s.store.Query(ctx, collection, queryEmb, initialK)
	if err != nil {
		logger.Error("vector query failed", zap.Error(err))
		return nil, err
	}

	rr, err := s.reranker.Rerank(ctx, question, cands, info.DistanceThreshold, topK)
	if err != nil {
		return nil, err
	}

	result := &model.SearchResult{
		Question:     question,
		Collection:   collection,
		Candidates:   rr.Candidates,
		Sources:      BuildSources(rr.Candidates),
		ContextBlock: FormatContext(rr.Candidates),
		Stats:        rr.Stats,
		Degraded:     rr.Degraded,
	}
	logger.Info("rag search done",
		zap.Int("initial_count", rr.Stats.InitialCount),
		zap.Int("after_distance_filter", rr.Stats.AfterDistanceFilter),
		zap.Int("after_rerank_filter", rr.Stats.AfterRerankFilter),
		zap.Int("final_count", rr.Stats.FinalCount),
		zap.Int64("reranking_time_ms", rr.Stats.RerankingTimeMs),
		zap.Bool("degraded", rr.Degraded),
	)
	return result, nil
}

// BuildPrompt renders a ready-to-send answering prompt for a previous
// search result.
func (s *RagService) BuildPrompt(result *model.SearchResult) string {
	return BuildAnswerPrompt(result.Question, result.ContextBlock)
}

func (s *RagService) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		EmbedModel:       s.embedder.ModelName(),
		EmbedDimension:   s.embedder.Dimension(),
		ScorerConfigured: s.reranker.ScoringConfigured(),
	}
	if err := s.embedder.CheckAvailable(ctx); err != nil {
		status.EmbedError = err.Error()
	} else {
		status.EmbedAvailable = true
	}
	return status
}
