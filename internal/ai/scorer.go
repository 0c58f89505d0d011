package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ErrScoreParse marks a scoring response that contained no usable number.
// Callers treat it as score 0, never as a neutral midpoint.
var ErrScoreParse = errors.New("relevance score not parseable")

const relevancePrompt = `Rate how relevant this document is to the question on a scale of 0 to 10.

Question: %s

Document:
%s

Respond with ONLY a single number between 0 and 10.`

var scoreNumberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

type ScorerConfig struct {
	Timeout time.Duration
}

// RelevanceScorer judges how well a document answers a question using a
// text generator, typically a small fast model at temperature 0.
type RelevanceScorer struct {
	generator IGenerator
	cfg       ScorerConfig
}

func NewRelevanceScorer(gen IGenerator, cfg ScorerConfig) *RelevanceScorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	return &RelevanceScorer{generator: gen, cfg: cfg}
}

func (s *RelevanceScorer) Score(ctx context.Context, question string, document string) (float64, error) {
	if s.generator == nil {
		return 0, ErrUnavailable
	}
	prompt := fmt.Sprintf(relevancePrompt, question, document)
	tctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	raw, err := s.generator.Generate(tctx, prompt)
	if err != nil {
		return 0, err
	}
	score, ok := parseScore(raw)
	if !ok {
		logutil.GetLogger(ctx).Warn("relevance score parse failed, treating as 0",
			zap.String("response", snippet(raw, 80)))
		return 0, ErrScoreParse
	}
	return score, nil
}

// parseScore accepts a bare number, otherwise falls back to the first
// number found anywhere in the response. Values are clamped to [0, 10].
func parseScore(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return clampScore(v), true
	}
	match := scoreNumberRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return clampScore(v), true
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
