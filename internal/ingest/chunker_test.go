package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragdex/internal/model"
)

func TestNewChunker(t *testing.T) {
	c, err := NewChunker(0, -1)
	require.NoError(t, err)
	require.Equal(t, DefaultChunkSize, c.size)
	require.Equal(t, DefaultChunkOverlap, c.overlap)

	_, err = NewChunker(100, 100)
	require.Error(t, err)
	_, err = NewChunker(100, 150)
	require.Error(t, err)
}

func TestChunkerSplit_ShortDocument(t *testing.T) {
	c, err := NewChunker(0, -1)
	require.NoError(t, err)
	doc := &model.Document{
		Content:  "Hello world.",
		Source:   "/data/hello.txt",
		FileType: "txt",
		Size:     12,
	}
	chunks := c.Split(doc)
	require.Len(t, chunks, 1)
	ch := chunks[0]
	require.Equal(t, "Hello world.", ch.Text)
	require.Equal(t, "/data/hello.txt", ch.Source)
	require.Equal(t, 0, ch.ChunkIndex)
	require.Equal(t, 0, ch.StartChar)
	require.Equal(t, 12, ch.EndChar)
	require.Equal(t, "txt", ch.Metadata["file_type"])
	require.Equal(t, "12", ch.Metadata["file_size"])
	_, perr := time.Parse(time.RFC3339, ch.Metadata["indexed_at"])
	require.NoError(t, perr)
}

func TestChunkerSplit_Empty(t *testing.T) {
	c, err := NewChunker(0, -1)
	require.NoError(t, err)
	require.Nil(t, c.Split(&model.Document{Content: ""}))
	require.Nil(t, c.Split(&model.Document{Content: "   \n\t  "}))
}

func TestChunkerSplit_BreaksOnSentence(t *testing.T) {
	c, err := NewChunker(30, 5)
	require.NoError(t, err)
	doc := &model.Document{
		Content: "First sentence is right here. Second sentence follows it now.",
		Source:  "a.txt",
	}
	chunks := c.Split(doc)
	require.Len(t, chunks, 2)
	require.Equal(t, "First sentence is right here.", chunks[0].Text)
	require.Equal(t, 0, chunks[0].StartChar)
	require.Equal(t, 29, chunks[0].EndChar)
	// The next window starts overlap runes before the previous cut.
	require.Equal(t, 24, chunks[1].StartChar)
	require.Equal(t, "here. Second sentence follows it now.", chunks[1].Text)
	require.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestChunkerSplit_HardCutWithoutBoundaries(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)
	doc := &model.Document{Content: strings.Repeat("a", 120), Source: "a.txt"}
	chunks := c.Split(doc)
	require.Len(t, chunks, 3)
	require.Equal(t, 0, chunks[0].StartChar)
	require.Equal(t, 50, chunks[0].EndChar)
	require.Equal(t, 40, chunks[1].StartChar)
	require.Equal(t, 90, chunks[1].EndChar)
	require.Equal(t, 80, chunks[2].StartChar)
	require.Equal(t, 120, chunks[2].EndChar)
	require.Len(t, chunks[2].Text, 40)
}

func TestChunkerSplit_RuneSafe(t *testing.T) {
	c, err := NewChunker(4, 1)
	require.NoError(t, err)
	doc := &model.Document{Content: "一二三四五六七八九十", Source: "cjk.txt"}
	chunks := c.Split(doc)
	require.Len(t, chunks, 3)
	require.Equal(t, "一二三四", chunks[0].Text)
	require.Equal(t, "四五六七", chunks[1].Text)
	require.Equal(t, "七八九十", chunks[2].Text)
}

func TestChunkerSplit_MetadataIsPerChunk(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)
	doc := &model.Document{Content: strings.Repeat("a", 120), Source: "a.txt", FileType: "txt"}
	chunks := c.Split(doc)
	require.GreaterOrEqual(t, len(chunks), 2)
	chunks[0].Metadata["file_type"] = "mutated"
	require.Equal(t, "txt", chunks[1].Metadata["file_type"])
}

func TestStatsOf(t *testing.T) {
	require.Equal(t, ChunkStats{}, StatsOf(nil))
	chunks := []*model.Chunk{
		{Text: "ab"},
		{Text: "abcd"},
	}
	st := StatsOf(chunks)
	require.Equal(t, 2, st.TotalChunks)
	require.Equal(t, 6, st.TotalChars)
	require.Equal(t, 3, st.AvgChars)
	require.Equal(t, 2, st.MinChars)
	require.Equal(t, 4, st.MaxChars)
}
