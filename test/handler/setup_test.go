package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/ragdex/internal/ai"
	"github.com/xxxsen/ragdex/internal/config"
	"github.com/xxxsen/ragdex/internal/handler"
	"github.com/xxxsen/ragdex/internal/ingest"
	"github.com/xxxsen/ragdex/internal/middleware"
	"github.com/xxxsen/ragdex/internal/service"
	"github.com/xxxsen/ragdex/internal/vecindex"
)

const testAdminKey = "test-admin-key"

// fixedEmbedder maps every text to the same 3-dimensional vector so
// handler tests run without a model server. Relevance comes from the
// fixed generator instead.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fixedEmbedder) ModelName() string { return "test-embed" }

func (fixedEmbedder) Dimension() int { return 3 }

func (fixedEmbedder) CheckAvailable(ctx context.Context) error { return nil }

type fixedGenerator struct {
	response string
}

func (g fixedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, nil
}

func setupRouter(t *testing.T) http.Handler {
	return newTestRouter(t, 0)
}

func newTestRouter(t *testing.T, searchRateLimit time.Duration) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := vecindex.New("memory", vecindex.StoreArgs{})
	require.NoError(t, err)

	embedder := fixedEmbedder{}
	scorer := ai.NewRelevanceScorer(fixedGenerator{response: "8"}, ai.ScorerConfig{})
	reranker := service.NewReranker(scorer, service.RerankerConfig{})
	rag := service.NewRagService(embedder, store, reranker, service.RagServiceConfig{})
	pipeline, err := ingest.NewPipeline(embedder, store, ingest.PipelineConfig{
		ChunkSize:    200,
		ChunkOverlap: 20,
	})
	require.NoError(t, err)

	deps := handler.RouterDeps{
		Search:          handler.NewSearchHandler(rag),
		Collections:     handler.NewCollectionHandler(store),
		Ingest:          handler.NewIngestHandler(pipeline, config.S3Config{}),
		Health:          handler.NewHealthHandler(rag),
		AdminAPIKey:     testAdminKey,
		SearchRateLimit: searchRateLimit,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

// seedDocs writes a small document tree and returns its path.
func seedDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"guide.md":  "# Widget Guide\n\nWidgets are assembled from sprockets and shipped in crates.",
		"notes.txt": "The installer needs root access to register the service.",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	return resp
}

func envelopeCode(t *testing.T, resp *httptest.ResponseRecorder) int {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	code, _ := out["code"].(float64)
	return int(code)
}

func ingestDocs(t *testing.T, router http.Handler, collection, path string) {
	t.Helper()
	resp := doRequest(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"collection": collection,
		"path":       path,
	}, testAdminKey)
	require.Equal(t, 0, envelopeCode(t, resp))
}
