package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/ragdex/internal/model"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 50
)

// breakEndings are tried in order when looking for a natural boundary
// near the end of a chunk window.
var breakEndings = []string{".", "!", "?", "\n\n"}

// Chunker splits document text into fixed-size character windows with
// overlap, preferring to cut on sentence endings or word boundaries so
// chunks stay readable on their own.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size int, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts the document content into chunks. Offsets and sizes are in
// runes so multi-byte text does not get cut mid-character. Empty chunks
// (whitespace-only windows) are dropped and do not consume an index.
func (c *Chunker) Split(doc *model.Document) []*model.Chunk {
	text := []rune(doc.Content)
	if len(strings.TrimSpace(doc.Content)) == 0 {
		return nil
	}

	base := map[string]string{
		"file_type":  doc.FileType,
		"file_size":  strconv.FormatInt(doc.Size, 10),
		"indexed_at": time.Now().UTC().Format(time.RFC3339),
	}

	var chunks []*model.Chunk
	start := 0
	for start < len(text) {
		end := start + c.size
		if end < len(text) {
			end = c.findBreakPoint(text, start, end)
		} else {
			end = len(text)
		}

		piece := strings.TrimSpace(string(text[start:end]))
		if piece != "" {
			md := make(map[string]string, len(base))
			for k, v := range base {
				md[k] = v
			}
			chunks = append(chunks, &model.Chunk{
				Source:     doc.Source,
				ChunkIndex: len(chunks),
				Text:       piece,
				StartChar:  start,
				EndChar:    end,
				Metadata:   md,
			})
		}

		start = end - c.overlap
		if start <= 0 || end >= len(text) {
			break
		}
	}
	return chunks
}

// findBreakPoint looks for a boundary near end so the chunk does not cut a
// sentence in half. Sentence endings may sit slightly past the target (up
// to 20 runes) and are accepted when they fall in the last 30% of the
// window; failing that, the last space in the final 20% is used. Without
// either, the hard cut at end stands.
func (c *Chunker) findBreakPoint(text []rune, start int, end int) int {
	searchEnd := end + 100
	if searchEnd > len(text) {
		searchEnd = len(text)
	}
	window := text[start:searchEnd]
	target := end - start

	for _, ending := range breakEndings {
		limit := target + 20
		if limit > len(window) {
			limit = len(window)
		}
		pos := lastIndexWithin(window, ending, limit)
		if pos >= 0 && float64(pos) > float64(target)*0.7 {
			return start + pos + 1
		}
	}

	limit := target
	if limit > len(window) {
		limit = len(window)
	}
	if pos := lastIndexWithin(window, " ", limit); pos >= 0 && float64(pos) > float64(target)*0.8 {
		return start + pos
	}
	return end
}

// lastIndexWithin returns the rune index of the last occurrence of needle
// inside window[:limit], or -1.
func lastIndexWithin(window []rune, needle string, limit int) int {
	n := []rune(needle)
	for i := limit - len(n); i >= 0; i-- {
		match := true
		for j := range n {
			if window[i+j] != n[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ChunkStats summarizes a chunk batch for logging and CLI output.
type ChunkStats struct {
	TotalChunks int
	TotalChars  int
	AvgChars    int
	MinChars    int
	MaxChars    int
}

func StatsOf(chunks []*model.Chunk) ChunkStats {
	st := ChunkStats{TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return st
	}
	st.MinChars = len([]rune(chunks[0].Text))
	for _, ch := range chunks {
		n := len([]rune(ch.Text))
		st.TotalChars += n
		if n < st.MinChars {
			st.MinChars = n
		}
		if n > st.MaxChars {
			st.MaxChars = n
		}
	}
	st.AvgChars = st.TotalChars / len(chunks)
	return st
}
