package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupGenerator struct {
	items []GeneratorEntry
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generator failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return "", lastErr
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder chains embedders as fallbacks. All members must agree
// on dimension, otherwise results could not land in the same collection.
func NewGroupEmbedder(items []EmbedderEntry) (IEmbedder, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no embedders provided")
	}
	dim := 0
	for _, item := range items {
		if item.Embedder == nil {
			continue
		}
		if dim == 0 {
			dim = item.Embedder.Dimension()
			continue
		}
		if item.Embedder.Dimension() != dim {
			return nil, fmt.Errorf("embedder %s dimension %d conflicts with group dimension %d",
				item.Name, item.Embedder.Dimension(), dim)
		}
	}
	if dim == 0 {
		return nil, fmt.Errorf("no embedders provided")
	}
	return &groupEmbedder{items: items}, nil
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "|")
}

func (g *groupEmbedder) Dimension() int {
	for _, item := range g.items {
		if item.Embedder != nil {
			return item.Embedder.Dimension()
		}
	}
	return 0
}

// CheckAvailable reports nil when at least one member is reachable.
func (g *groupEmbedder) CheckAvailable(ctx context.Context) error {
	var lastErr error
	for _, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		if err := item.Embedder.CheckAvailable(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		return ErrUnavailable
	}
	return lastErr
}
