package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Embedding task kinds, passed through to providers that support them.
const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

var (
	ErrUnavailable = errors.New("ai provider unavailable")
	ErrEmptyInput  = errors.New("empty input text")
)

type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
	CheckAvailable(ctx context.Context) error
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IEmbedder binds a provider to a fixed model. Dimension is pinned for
// the embedder's lifetime and every successful Embed result has exactly
// that length.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
	Dimension() int
	CheckAvailable(ctx context.Context) error
}

var knownEmbedDimensions = map[string]int{
	"text-embedding-004":     768,
	"mxbai-embed-large":      1024,
	"nomic-embed-text":       768,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt)
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	dimension int
}

func NewEmbedder(p IEmbedProvider, model string, dimension int) (IEmbedder, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if dimension <= 0 {
		dimension = knownEmbedDimensions[model]
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("unknown embedding dimension for model %s, set it explicitly", model)
	}
	return &embedder{provider: p, model: model, dimension: dimension}, nil
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	var res []float32
	err := retryBackoff(ctx, 3, func() error {
		var ierr error
		res, ierr = e.provider.Embed(ctx, e.model, text, taskType)
		return ierr
	})
	if err != nil {
		return nil, err
	}
	if len(res) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: model %s returned %d values, expected %d", e.model, len(res), e.dimension)
	}
	return res, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) Dimension() int {
	return e.dimension
}

func (e *embedder) CheckAvailable(ctx context.Context) error {
	return e.provider.CheckAvailable(ctx)
}

type FactoryFunc func(args interface{}) (IAIProvider, error)

type EmbedFactoryFunc func(args interface{}) (IEmbedProvider, error)

var (
	registry      = map[string]FactoryFunc{}
	embedRegistry = map[string]EmbedFactoryFunc{}
)

func Register(name string, factory FactoryFunc) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactoryFunc) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai provider name is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embed provider name is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.status, e.body)
}

// retryBackoff retries fn on throttling and server errors with 1s/2s/4s
// delays. Other errors abort immediately.
func retryBackoff(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || i == attempts-1 {
			return err
		}
		delay := time.Duration(1<<uint(i)) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == 429 || statusErr.status >= 500
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}
