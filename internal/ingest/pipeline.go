package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragdex/internal/ai"
	"github.com/xxxsen/ragdex/internal/docsource"
	"github.com/xxxsen/ragdex/internal/model"
	"github.com/xxxsen/ragdex/internal/vecindex"
	"go.uber.org/zap"
)

const defaultEmbedWorkers = 4

type PipelineConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	EmbedWorkers      int
	DistanceThreshold float64
}

// Result reports what each stage of an indexing run accomplished.
type Result struct {
	DocumentsLoaded     int   `json:"documents_loaded"`
	ChunksCreated       int   `json:"chunks_created"`
	EmbeddingsGenerated int   `json:"embeddings_generated"`
	ChunksIndexed       int   `json:"chunks_indexed"`
	Failed              int   `json:"failed"`
	ElapsedMs           int64 `json:"elapsed_ms"`
}

// Pipeline turns raw documents into indexed chunks: load, chunk, embed,
// upsert. Embedding runs on a bounded worker pool; a document whose
// chunks cannot all be embedded is skipped and counted as failed, while
// storage errors abort the run since they signal a broken backend rather
// than one bad input.
type Pipeline struct {
	embedder ai.IEmbedder
	store    vecindex.Store
	chunker  *Chunker
	workers  int
	distance float64
}

func NewPipeline(embedder ai.IEmbedder, store vecindex.Store, cfg PipelineConfig) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	workers := cfg.EmbedWorkers
	if workers <= 0 {
		workers = defaultEmbedWorkers
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		chunker:  chunker,
		workers:  workers,
		distance: cfg.DistanceThreshold,
	}, nil
}

func (p *Pipeline) Run(ctx context.Context, collection string, src docsource.Source) (*Result, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("collection", collection),
		zap.String("source_type", src.Name()),
	)
	start := time.Now()

	docs, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	res := &Result{DocumentsLoaded: len(docs)}
	if len(docs) == 0 {
		logger.Warn("no documents found, nothing to index")
		res.ElapsedMs = time.Since(start).Milliseconds()
		return res, nil
	}

	if _, err := p.store.EnsureCollection(ctx, collection, p.embedder.Dimension(), p.distance); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := p.indexDocument(ctx, logger, collection, doc, res); err != nil {
			return res, err
		}
	}

	res.ElapsedMs = time.Since(start).Milliseconds()
	logger.Info("indexing run finished",
		zap.Int("documents_loaded", res.DocumentsLoaded),
		zap.Int("chunks_created", res.ChunksCreated),
		zap.Int("embeddings_generated", res.EmbeddingsGenerated),
		zap.Int("chunks_indexed", res.ChunksIndexed),
		zap.Int("failed", res.Failed),
		zap.Int64("elapsed_ms", res.ElapsedMs),
	)
	return res, nil
}

func (p *Pipeline) indexDocument(ctx context.Context, logger *zap.Logger, collection string, doc *model.Document, res *Result) error {
	content := doc.Content
	if doc.FileType == "md" {
		content = FlattenMarkdown(content)
	}
	d := *doc
	d.Content = content
	chunks := p.chunker.Split(&d)
	if len(chunks) == 0 {
		logger.Debug("document produced no chunks", zap.String("source", doc.Source))
		return nil
	}
	res.ChunksCreated += len(chunks)

	vectors, embedded, firstErr := p.embedChunks(ctx, chunks)
	res.EmbeddingsGenerated += embedded
	if err := ctx.Err(); err != nil {
		return err
	}
	if firstErr != nil {
		res.Failed++
		logger.Warn("skip document, embedding failed",
			zap.String("source", doc.Source),
			zap.Int("chunks", len(chunks)),
			zap.Int("embedded", embedded),
			zap.Error(firstErr),
		)
		return nil
	}

	// Drop whatever an earlier run indexed for this source first, so
	// shrunken documents do not leave stale trailing chunks behind.
	if _, err := p.store.DeleteSource(ctx, collection, doc.Source); err != nil {
		return fmt.Errorf("delete stale chunks for %s: %w", doc.Source, err)
	}
	indexed, err := p.store.Upsert(ctx, collection, chunks, vectors)
	if err != nil {
		return fmt.Errorf("index chunks for %s: %w", doc.Source, err)
	}
	res.ChunksIndexed += indexed
	logger.Debug("document indexed", zap.String("source", doc.Source), zap.Int("chunks", len(chunks)))
	return nil
}

// embedChunks embeds every chunk of one document on a bounded pool,
// returning the vectors, how many succeeded, and the first failure.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*model.Chunk) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, ch := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return vectors, 0, ctx.Err()
		}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()
			vec, err := p.embedder.Embed(ctx, text, ai.TaskTypeDocument)
			if err != nil {
				errs[i] = err
				return
			}
			vectors[i] = vec
		}(i, ch.Text)
	}
	wg.Wait()

	embedded := 0
	var firstErr error
	for i := range chunks {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		embedded++
	}
	return vectors, embedded, firstErr
}
