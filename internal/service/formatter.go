package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/ragdex/internal/model"
)

const answerPromptTemplate = `Use the following context to answer the question.
Cite sources using the format [Source: <name>, Chunk <n>] when you use information from the context.
If the context does not contain enough information to answer, say so.

Context:
%s

Question: %s

Answer:`

// FormatContext renders candidates into the model-facing context block.
// Each chunk is prefixed with its citation tag, blocks are separated by
// blank lines. Source names are base names, never full paths.
func FormatContext(cands []*model.Candidate) string {
	if len(cands) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(cands))
	for _, c := range cands {
		blocks = append(blocks, fmt.Sprintf("[Source: %s, Chunk %d]\n%s",
			sourceName(c.Chunk.Source), c.Chunk.ChunkIndex, c.Chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildAnswerPrompt wraps the context block with citation guidance for
// the answering model.
func BuildAnswerPrompt(question string, contextBlock string) string {
	return fmt.Sprintf(answerPromptTemplate, contextBlock, question)
}

func BuildSources(cands []*model.Candidate) []*model.SourceRef {
	refs := make([]*model.SourceRef, 0, len(cands))
	for _, c := range cands {
		refs = append(refs, &model.SourceRef{
			SourceName:  sourceName(c.Chunk.Source),
			ChunkIndex:  c.Chunk.ChunkIndex,
			Distance:    c.Distance,
			RerankScore: c.RerankScore,
			Scored:      c.Scored,
		})
	}
	return refs
}

func sourceName(source string) string {
	name := filepath.Base(strings.TrimSpace(source))
	if name == "." || name == string(filepath.Separator) {
		return source
	}
	return name
}
