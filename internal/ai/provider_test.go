package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

type stubEmbedProvider struct {
	result   []float32
	err      error
	calls    int
	checkErr error
}

func (s *stubEmbedProvider) Name() string { return "stub" }

func (s *stubEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubEmbedProvider) CheckAvailable(ctx context.Context) error { return s.checkErr }

func TestNewEmbedderDimensionResolution(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		dimension int
		want      int
		wantErr   bool
	}{
		{name: "known gemini model", model: "text-embedding-004", want: 768},
		{name: "known ollama model", model: "mxbai-embed-large", want: 1024},
		{name: "explicit dimension wins", model: "text-embedding-004", dimension: 256, want: 256},
		{name: "unknown model needs dimension", model: "custom-embed", wantErr: true},
		{name: "unknown model with dimension", model: "custom-embed", dimension: 512, want: 512},
		{name: "empty model", model: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(&stubEmbedProvider{}, tt.model, tt.dimension)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if e.Dimension() != tt.want {
				t.Fatalf("dimension = %d, want %d", e.Dimension(), tt.want)
			}
		})
	}
}

func TestEmbedderEmbed_EmptyInput(t *testing.T) {
	p := &stubEmbedProvider{}
	e, err := NewEmbedder(p, "text-embedding-004", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "   \n", TaskTypeQuery); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("provider should not be called for empty input, got %d calls", p.calls)
	}
}

func TestEmbedderEmbed_DimensionMismatch(t *testing.T) {
	p := &stubEmbedProvider{result: []float32{1, 2, 3}}
	e, err := NewEmbedder(p, "custom-embed", 4)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Embed(context.Background(), "hello", TaskTypeDocument)
	if err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}
}

func TestEmbedderEmbed_NoRetryOnClientError(t *testing.T) {
	p := &stubEmbedProvider{err: &httpStatusError{status: 400, body: "bad request"}}
	e, err := NewEmbedder(p, "custom-embed", 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello", TaskTypeDocument); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", p.calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "throttled", err: &httpStatusError{status: 429}, want: true},
		{name: "server error", err: &httpStatusError{status: 500}, want: true},
		{name: "unavailable", err: &httpStatusError{status: 503}, want: true},
		{name: "bad request", err: &httpStatusError{status: 400}, want: false},
		{name: "not found", err: &httpStatusError{status: 404}, want: false},
		{name: "genai throttled", err: genai.APIError{Code: 429}, want: true},
		{name: "genai server error", err: genai.APIError{Code: 500}, want: true},
		{name: "genai bad request", err: genai.APIError{Code: 400}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	calls := 0
	err := retryBackoff(ctx, 3, func() error {
		calls++
		return &httpStatusError{status: 500}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt before the deadline, got %d", calls)
	}
}

func TestProviderRegistry(t *testing.T) {
	if _, err := NewProvider("", nil); err == nil {
		t.Fatal("expected error for empty provider name")
	}
	if _, err := NewProvider("does-not-exist", nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	p, err := NewEmbedProvider("OLLAMA", map[string]interface{}{"base_url": "http://localhost:11434"})
	if err != nil {
		t.Fatalf("lookup should be case insensitive: %v", err)
	}
	if p.Name() != "ollama" {
		t.Fatalf("unexpected provider name %s", p.Name())
	}
}
