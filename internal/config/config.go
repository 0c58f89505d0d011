package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port              int               `json:"port"`
	AdminAPIKey       string            `json:"admin_api_key"`
	SearchRateLimitMs int               `json:"search_rate_limit_ms"`
	LogConfig         logger.LogConfig  `json:"log_config"`
	Database          DatabaseConfig    `json:"database"`
	VectorStore       VectorStoreConfig `json:"vector_store"`
	AI                AIConfig          `json:"ai"`
	Rerank            RerankConfig      `json:"rerank"`
	Ingest            IngestConfig      `json:"ingest"`
	EmbedCache        EmbedCacheConfig  `json:"embed_cache"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type VectorStoreConfig struct {
	Engine string `json:"engine"` // pgvector or memory
}

type AIConfig struct {
	Embedder       EmbedderConfig    `json:"embedder"`
	EmbedFallbacks []EmbedderConfig  `json:"embed_fallbacks"`
	Scorer         GeneratorConfig   `json:"scorer"`
	ScoreFallbacks []GeneratorConfig `json:"score_fallbacks"`
}

type EmbedderConfig struct {
	Provider  string                 `json:"provider"`
	Model     string                 `json:"model"`
	Dimension int                    `json:"dimension"`
	Args      map[string]interface{} `json:"args"`
}

type GeneratorConfig struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Args     map[string]interface{} `json:"args"`
}

type RerankConfig struct {
	ScoreThreshold    float64 `json:"score_threshold"`
	DistanceThreshold float64 `json:"distance_threshold"`
	TopK              int     `json:"top_k"`
	InitialK          int     `json:"initial_k"`
	Workers           int     `json:"workers"`
	ScoreTimeoutSecs  int     `json:"score_timeout_secs"`
}

type IngestConfig struct {
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	EmbedWorkers int      `json:"embed_workers"`
	S3           S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

// DocSourceConfig selects a registered document source and carries its
// source-specific settings, decoded by the source factory itself.
type DocSourceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type EmbedCacheConfig struct {
	LRUSize       int    `json:"lru_size"`
	LRUTTLMinutes int    `json:"lru_ttl_minutes"`
	UseDB         bool   `json:"use_db"`
	MaxAgeDays    int    `json:"max_age_days"`
	CleanupCron   string `json:"cleanup_cron"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.VectorStore.Engine == "" {
		cfg.VectorStore.Engine = "pgvector"
	}
	switch cfg.VectorStore.Engine {
	case "pgvector":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return nil, fmt.Errorf("database.dsn or database.host is required for pgvector engine")
		}
	case "memory":
		if cfg.EmbedCache.UseDB {
			return nil, fmt.Errorf("embed_cache.use_db requires the pgvector engine")
		}
	default:
		return nil, fmt.Errorf("vector_store.engine must be pgvector or memory")
	}
	if cfg.AI.Embedder.Provider == "" {
		cfg.AI.Embedder.Provider = "gemini"
	}
	if cfg.AI.Embedder.Model == "" {
		cfg.AI.Embedder.Model = defaultEmbedModel(cfg.AI.Embedder.Provider)
	}
	if cfg.AI.Embedder.Model == "" {
		return nil, fmt.Errorf("ai.embedder.model is required for provider %s", cfg.AI.Embedder.Provider)
	}
	if cfg.AI.Scorer.Provider == "" {
		cfg.AI.Scorer.Provider = "gemini"
	}
	if cfg.AI.Scorer.Model == "" {
		cfg.AI.Scorer.Model = defaultScoreModel(cfg.AI.Scorer.Provider)
	}
	if cfg.AI.Scorer.Model == "" {
		return nil, fmt.Errorf("ai.scorer.model is required for provider %s", cfg.AI.Scorer.Provider)
	}
	for i, fb := range cfg.AI.EmbedFallbacks {
		if fb.Provider == "" || fb.Model == "" {
			return nil, fmt.Errorf("ai.embed_fallbacks[%d] provider and model are required", i)
		}
	}
	for i, fb := range cfg.AI.ScoreFallbacks {
		if fb.Provider == "" || fb.Model == "" {
			return nil, fmt.Errorf("ai.score_fallbacks[%d] provider and model are required", i)
		}
	}
	if cfg.Rerank.ScoreThreshold == 0 {
		cfg.Rerank.ScoreThreshold = 5.0
	}
	if cfg.Rerank.DistanceThreshold == 0 {
		cfg.Rerank.DistanceThreshold = 195.0
	}
	if cfg.Rerank.TopK == 0 {
		cfg.Rerank.TopK = 5
	}
	if cfg.Rerank.InitialK == 0 {
		cfg.Rerank.InitialK = 20
	}
	if cfg.Rerank.Workers == 0 {
		cfg.Rerank.Workers = 4
	}
	if cfg.Rerank.ScoreTimeoutSecs == 0 {
		cfg.Rerank.ScoreTimeoutSecs = 12
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return nil, fmt.Errorf("ingest.chunk_overlap must be less than ingest.chunk_size")
	}
	if cfg.Ingest.EmbedWorkers == 0 {
		cfg.Ingest.EmbedWorkers = 4
	}
	if cfg.EmbedCache.LRUSize == 0 {
		cfg.EmbedCache.LRUSize = 10000
	}
	if cfg.EmbedCache.LRUTTLMinutes == 0 {
		cfg.EmbedCache.LRUTTLMinutes = 120
	}
	if cfg.EmbedCache.MaxAgeDays == 0 {
		cfg.EmbedCache.MaxAgeDays = 30
	}
	if cfg.EmbedCache.CleanupCron == "" {
		cfg.EmbedCache.CleanupCron = "0 3 * * *"
	}
	return &cfg, nil
}

func defaultEmbedModel(provider string) string {
	switch provider {
	case "gemini":
		return "text-embedding-004"
	case "ollama":
		return "mxbai-embed-large"
	case "openai":
		return "text-embedding-3-small"
	}
	return ""
}

func defaultScoreModel(provider string) string {
	if provider == "gemini" {
		return "gemini-2.5-flash"
	}
	return ""
}
