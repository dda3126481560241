package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerShortTextSingleChunk(t *testing.T) {
	chunker := NewChunker(1000, 150)
	chunks := chunker.SplitPages([]Page{{Number: 1, Text: "hello world"}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
}

func TestChunkerEmptyInput(t *testing.T) {
	chunker := NewChunker(1000, 150)
	assert.Nil(t, chunker.SplitPages(nil))
	assert.Nil(t, chunker.SplitPages([]Page{{Number: 1, Text: "   \n  "}}))
}

func TestChunkerBoundsAndOverlap(t *testing.T) {
	// 无语义边界的长文本，验证窗口上限与重叠
	text := strings.Repeat("a", 250)
	chunker := NewChunker(100, 20)
	chunks := chunker.SplitPages([]Page{{Number: 1, Text: text}})

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), 100)
	}
	// 相邻chunk共享重叠区
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		overlap := prev[len(prev)-20:]
		assert.True(t, strings.HasPrefix(chunks[i].Text, overlap),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestChunkerReconstruction(t *testing.T) {
	// 忽略重叠区后拼接应还原原文
	text := strings.Repeat("b", 333)
	chunker := NewChunker(100, 25)
	chunks := chunker.SplitPages([]Page{{Number: 1, Text: text}})

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		rebuilt.WriteString(chunks[i].Text[25:])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkerPrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("x", 70)
	para2 := strings.Repeat("y", 80)
	chunker := NewChunker(100, 10)
	chunks := chunker.SplitPages([]Page{{Number: 1, Text: para1 + "\n\n" + para2}})

	require.GreaterOrEqual(t, len(chunks), 2)
	// 第一个chunk应在段落边界处结束，而不是硬切进para2
	assert.Equal(t, para1, chunks[0].Text)
}

func TestChunkerSinglePageStamp(t *testing.T) {
	chunker := NewChunker(1000, 150)
	pages := []Page{
		{Number: 1, Text: "first page content"},
		{Number: 2, Text: "second page content"},
		{Number: 3, Text: "third page content"},
	}
	chunks := chunker.SplitPages(pages)

	// 全部内容装进一个chunk：跨页，PageStart < PageEnd
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 3, chunks[0].PageEnd)
}

func TestChunkerPerPageStamps(t *testing.T) {
	// 每页内容超过一个chunk，页内chunk应有相等的起止页码
	pageText := strings.Repeat("w ", 300) // 600 runes
	chunker := NewChunker(500, 50)
	chunks := chunker.SplitPages([]Page{
		{Number: 1, Text: pageText},
		{Number: 2, Text: pageText},
	})

	require.Greater(t, len(chunks), 2)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)

	last := chunks[len(chunks)-1]
	assert.Equal(t, 2, last.PageStart)
	assert.Equal(t, 2, last.PageEnd)

	// 跨页chunk的页码范围递增
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.PageStart, chunk.PageEnd)
	}
}

func TestChunkerGuardsBadConfig(t *testing.T) {
	chunker := NewChunker(0, -5)
	assert.Equal(t, 1000, chunker.chunkSize)
	assert.Equal(t, 0, chunker.chunkOverlap)

	chunker = NewChunker(100, 100)
	assert.Equal(t, 25, chunker.chunkOverlap)
}
