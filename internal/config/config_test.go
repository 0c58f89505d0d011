package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeConfig(t, `{"port": 9901, "database": {"host": "localhost"}}`)
	cfg, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, 9901, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "pgvector", cfg.VectorStore.Engine)

	require.Equal(t, "gemini", cfg.AI.Embedder.Provider)
	require.Equal(t, "text-embedding-004", cfg.AI.Embedder.Model)
	require.Equal(t, "gemini", cfg.AI.Scorer.Provider)
	require.Equal(t, "gemini-2.5-flash", cfg.AI.Scorer.Model)

	require.Equal(t, 5.0, cfg.Rerank.ScoreThreshold)
	require.Equal(t, 195.0, cfg.Rerank.DistanceThreshold)
	require.Equal(t, 5, cfg.Rerank.TopK)
	require.Equal(t, 20, cfg.Rerank.InitialK)
	require.Equal(t, 4, cfg.Rerank.Workers)
	require.Equal(t, 12, cfg.Rerank.ScoreTimeoutSecs)

	require.Equal(t, 500, cfg.Ingest.ChunkSize)
	require.Equal(t, 50, cfg.Ingest.ChunkOverlap)
	require.Equal(t, 4, cfg.Ingest.EmbedWorkers)

	require.Equal(t, 10000, cfg.EmbedCache.LRUSize)
	require.Equal(t, 120, cfg.EmbedCache.LRUTTLMinutes)
	require.Equal(t, 30, cfg.EmbedCache.MaxAgeDays)
	require.Equal(t, "0 3 * * *", cfg.EmbedCache.CleanupCron)
}

func TestLoadProviderDefaults(t *testing.T) {
	p := writeConfig(t, `{
		"port": 9901,
		"vector_store": {"engine": "memory"},
		"ai": {
			"embedder": {"provider": "ollama"},
			"scorer": {"provider": "ollama", "model": "qwen3:8b"}
		}
	}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "mxbai-embed-large", cfg.AI.Embedder.Model)
	require.Equal(t, "qwen3:8b", cfg.AI.Scorer.Model)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "missing port",
			content: `{}`,
			errText: "port is required",
		},
		{
			name:    "pgvector without database",
			content: `{"port": 9901}`,
			errText: "database.dsn or database.host is required",
		},
		{
			name:    "unknown engine",
			content: `{"port": 9901, "vector_store": {"engine": "redis"}}`,
			errText: "must be pgvector or memory",
		},
		{
			name:    "db cache without database",
			content: `{"port": 9901, "vector_store": {"engine": "memory"}, "embed_cache": {"use_db": true}}`,
			errText: "requires the pgvector engine",
		},
		{
			name:    "non-gemini scorer without model",
			content: `{"port": 9901, "vector_store": {"engine": "memory"}, "ai": {"scorer": {"provider": "openrouter"}}}`,
			errText: "ai.scorer.model is required",
		},
		{
			name:    "custom embed provider without model",
			content: `{"port": 9901, "vector_store": {"engine": "memory"}, "ai": {"embedder": {"provider": "openrouter"}}}`,
			errText: "ai.embedder.model is required",
		},
		{
			name:    "fallback without model",
			content: `{"port": 9901, "vector_store": {"engine": "memory"}, "ai": {"embed_fallbacks": [{"provider": "ollama"}]}}`,
			errText: "ai.embed_fallbacks[0]",
		},
		{
			name:    "overlap too large",
			content: `{"port": 9901, "vector_store": {"engine": "memory"}, "ingest": {"chunk_size": 100, "chunk_overlap": 100}}`,
			errText: "chunk_overlap must be less than",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadExplicitValuesKept(t *testing.T) {
	p := writeConfig(t, `{
		"port": 9901,
		"admin_api_key": "s3cret",
		"search_rate_limit_ms": 1500,
		"vector_store": {"engine": "memory"},
		"ai": {
			"embedder": {"provider": "ollama", "model": "nomic-embed-text", "dimension": 768}
		},
		"rerank": {"score_threshold": 6.5, "top_k": 3},
		"ingest": {"chunk_size": 800, "chunk_overlap": 80, "s3": {"endpoint": "http://minio:9000", "bucket": "docs"}}
	}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "s3cret", cfg.AdminAPIKey)
	require.Equal(t, 1500, cfg.SearchRateLimitMs)
	require.Equal(t, "nomic-embed-text", cfg.AI.Embedder.Model)
	require.Equal(t, 768, cfg.AI.Embedder.Dimension)
	require.Equal(t, 6.5, cfg.Rerank.ScoreThreshold)
	require.Equal(t, 3, cfg.Rerank.TopK)
	require.Equal(t, 800, cfg.Ingest.ChunkSize)
	require.Equal(t, "http://minio:9000", cfg.Ingest.S3.Endpoint)
	require.Equal(t, "docs", cfg.Ingest.S3.Bucket)
}
