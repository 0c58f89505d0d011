package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragdex/internal/ai"
	"github.com/xxxsen/ragdex/internal/config"
	"github.com/xxxsen/ragdex/internal/db"
	"github.com/xxxsen/ragdex/internal/embedcache"
	"github.com/xxxsen/ragdex/internal/handler"
	"github.com/xxxsen/ragdex/internal/ingest"
	"github.com/xxxsen/ragdex/internal/job"
	"github.com/xxxsen/ragdex/internal/middleware"
	"github.com/xxxsen/ragdex/internal/repo"
	"github.com/xxxsen/ragdex/internal/schedule"
	"github.com/xxxsen/ragdex/internal/service"
	"github.com/xxxsen/ragdex/internal/vecindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragdex",
		Short: "document retrieval service with vector search and LLM reranking",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the ragdex server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			stack, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer stack.Close()
			return runServer(cfg, stack)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newIndexCmd(&configPath))
	rootCmd.AddCommand(newSearchCmd(&configPath))
	rootCmd.AddCommand(newCollectionsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	// .env is optional, it only feeds provider API keys into the environment
	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

type appStack struct {
	db        *sql.DB
	store     vecindex.Store
	embedder  ai.IEmbedder
	rag       *service.RagService
	pipeline  *ingest.Pipeline
	cacheRepo *repo.EmbeddingCacheRepo
}

func (s *appStack) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func buildStack(cfg *config.Config) (*appStack, error) {
	var database *sql.DB
	if cfg.VectorStore.Engine == "pgvector" {
		var err error
		database, err = db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(database); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	store, err := vecindex.New(cfg.VectorStore.Engine, vecindex.StoreArgs{DB: database})
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	var cacheRepo *repo.EmbeddingCacheRepo
	if database != nil {
		cacheRepo = repo.NewEmbeddingCacheRepo(database)
	}
	embedder, err := buildEmbedder(cfg, cacheRepo)
	if err != nil {
		return nil, err
	}
	scorer := buildScorer(cfg)
	reranker := service.NewReranker(scorer, service.RerankerConfig{
		ScoreThreshold:    cfg.Rerank.ScoreThreshold,
		DistanceThreshold: cfg.Rerank.DistanceThreshold,
		TopK:              cfg.Rerank.TopK,
		Workers:           cfg.Rerank.Workers,
	})
	rag := service.NewRagService(embedder, store, reranker, service.RagServiceConfig{
		TopK:     cfg.Rerank.TopK,
		InitialK: cfg.Rerank.InitialK,
	})
	pipeline, err := ingest.NewPipeline(embedder, store, ingest.PipelineConfig{
		ChunkSize:         cfg.Ingest.ChunkSize,
		ChunkOverlap:      cfg.Ingest.ChunkOverlap,
		EmbedWorkers:      cfg.Ingest.EmbedWorkers,
		DistanceThreshold: cfg.Rerank.DistanceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	return &appStack{
		db:        database,
		store:     store,
		embedder:  embedder,
		rag:       rag,
		pipeline:  pipeline,
		cacheRepo: cacheRepo,
	}, nil
}

func buildEmbedder(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	primary, err := makeEmbedder(cfg.AI.Embedder)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	embedder := primary
	if len(cfg.AI.EmbedFallbacks) > 0 {
		entries := []ai.EmbedderEntry{{Name: embedderName(cfg.AI.Embedder), Embedder: primary}}
		for _, fb := range cfg.AI.EmbedFallbacks {
			e, err := makeEmbedder(fb)
			if err != nil {
				return nil, fmt.Errorf("init embed fallback %s: %w", embedderName(fb), err)
			}
			entries = append(entries, ai.EmbedderEntry{Name: embedderName(fb), Embedder: e})
		}
		embedder, err = ai.NewGroupEmbedder(entries)
		if err != nil {
			return nil, err
		}
	}
	if cfg.EmbedCache.UseDB && cacheRepo != nil {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize,
		time.Duration(cfg.EmbedCache.LRUTTLMinutes)*time.Minute)
	return embedder, nil
}

func makeEmbedder(ec config.EmbedderConfig) (ai.IEmbedder, error) {
	p, err := ai.NewEmbedProvider(ec.Provider, ec.Args)
	if err != nil {
		return nil, err
	}
	return ai.NewEmbedder(p, ec.Model, ec.Dimension)
}

func embedderName(ec config.EmbedderConfig) string {
	return ec.Provider + "/" + ec.Model
}

// buildScorer never fails the boot: without a usable scorer the service
// still answers searches, just ranked by vector distance alone.
func buildScorer(cfg *config.Config) *ai.RelevanceScorer {
	log := logutil.GetLogger(context.Background())
	gen, err := makeGenerator(cfg.AI.Scorer)
	if err != nil {
		log.Warn("relevance scoring disabled", zap.Error(err))
		return nil
	}
	if len(cfg.AI.ScoreFallbacks) > 0 {
		entries := []ai.GeneratorEntry{{Name: generatorName(cfg.AI.Scorer), Generator: gen}}
		for _, fb := range cfg.AI.ScoreFallbacks {
			g, err := makeGenerator(fb)
			if err != nil {
				log.Warn("skip score fallback", zap.String("name", generatorName(fb)), zap.Error(err))
				continue
			}
			entries = append(entries, ai.GeneratorEntry{Name: generatorName(fb), Generator: g})
		}
		gen = ai.NewGroupGenerator(entries)
	}
	return ai.NewRelevanceScorer(gen, ai.ScorerConfig{
		Timeout: time.Duration(cfg.Rerank.ScoreTimeoutSecs) * time.Second,
	})
}

func makeGenerator(gc config.GeneratorConfig) (ai.IGenerator, error) {
	p, err := ai.NewProvider(gc.Provider, gc.Args)
	if err != nil {
		return nil, err
	}
	return ai.NewGenerator(p, gc.Model), nil
}

func generatorName(gc config.GeneratorConfig) string {
	return gc.Provider + "/" + gc.Model
}

func runServer(cfg *config.Config, stack *appStack) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_engine", cfg.VectorStore.Engine),
		zap.String("embed_model", stack.embedder.ModelName()),
		zap.Int("embed_dimension", stack.embedder.Dimension()),
	)

	deps := handler.RouterDeps{
		Search:          handler.NewSearchHandler(stack.rag),
		Collections:     handler.NewCollectionHandler(stack.store),
		Ingest:          handler.NewIngestHandler(stack.pipeline, cfg.Ingest.S3),
		Health:          handler.NewHealthHandler(stack.rag),
		AdminAPIKey:     cfg.AdminAPIKey,
		SearchRateLimit: time.Duration(cfg.SearchRateLimitMs) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if cfg.EmbedCache.UseDB && stack.cacheRepo != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(stack.cacheRepo, cfg.EmbedCache.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.EmbedCache.CleanupCron); err != nil {
			return fmt.Errorf("schedule cleanup job: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()
	logutil.GetLogger(ctx).Info("scheduler started", zap.Strings("jobs", scheduler.Names()))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
