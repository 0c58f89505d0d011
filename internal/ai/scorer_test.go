package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{name: "bare integer", raw: "7", want: 7, ok: true},
		{name: "bare float", raw: "7.5", want: 7.5, ok: true},
		{name: "surrounding whitespace", raw: "  8  \n", want: 8, ok: true},
		{name: "labelled", raw: "Score: 8", want: 8, ok: true},
		{name: "embedded in prose", raw: "I would give it 9.5 out of 10", want: 9.5, ok: true},
		{name: "clamped high", raw: "15", want: 10, ok: true},
		{name: "clamped negative", raw: "-3", want: 0, ok: true},
		{name: "no number", raw: "highly relevant", want: 0, ok: false},
		{name: "empty", raw: "", want: 0, ok: false},
		{name: "spelled out", raw: "ten", want: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseScore(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseScore(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.response, s.err
}

func TestRelevanceScorerScore(t *testing.T) {
	gen := &stubGenerator{response: "8"}
	scorer := NewRelevanceScorer(gen, ScorerConfig{})

	score, err := scorer.Score(context.Background(), "what is a widget?", "widgets are round")
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if score != 8 {
		t.Fatalf("expected score 8, got %v", score)
	}
	if !strings.Contains(gen.lastPrompt, "what is a widget?") || !strings.Contains(gen.lastPrompt, "widgets are round") {
		t.Fatalf("prompt missing question or document:\n%s", gen.lastPrompt)
	}
}

func TestRelevanceScorerScore_ParseFailure(t *testing.T) {
	scorer := NewRelevanceScorer(&stubGenerator{response: "very relevant indeed"}, ScorerConfig{})
	score, err := scorer.Score(context.Background(), "q", "doc")
	if !errors.Is(err, ErrScoreParse) {
		t.Fatalf("expected ErrScoreParse, got %v", err)
	}
	if score != 0 {
		t.Fatalf("parse failure must score 0, got %v", score)
	}
}

func TestRelevanceScorerScore_GeneratorError(t *testing.T) {
	boom := errors.New("model overloaded")
	scorer := NewRelevanceScorer(&stubGenerator{err: boom}, ScorerConfig{})
	_, err := scorer.Score(context.Background(), "q", "doc")
	if !errors.Is(err, boom) {
		t.Fatalf("expected generator error passthrough, got %v", err)
	}
}

func TestRelevanceScorerScore_NilGenerator(t *testing.T) {
	scorer := NewRelevanceScorer(nil, ScorerConfig{})
	_, err := scorer.Score(context.Background(), "q", "doc")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
