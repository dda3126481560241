package rag

import (
	"unicode/utf8"
)

// DefaultSnippetSize 引用摘要的最大rune数
const DefaultSnippetSize = 160

// FormatCitations 将检索结果投影为引用列表
// 纯函数，严格保序：输入的第i名即输出的第i条，
// 也就是答案中 [i+1] 引用标记指向的证据。
func FormatCitations(chunks []ScoredChunk, snippetSize int) []Citation {
	if snippetSize <= 0 {
		snippetSize = DefaultSnippetSize
	}

	citations := make([]Citation, 0, len(chunks))
	for _, scored := range chunks {
		chunk := scored.Chunk
		citations = append(citations, Citation{
			PaperID:   chunk.PaperID,
			Title:     chunk.Title,
			Section:   chunk.Section,
			PageStart: chunk.PageStart,
			PageEnd:   chunk.PageEnd,
			ChunkID:   chunk.ChunkID,
			Snippet:   truncateRunes(chunk.Text, snippetSize),
			Text:      chunk.Text,
		})
	}
	return citations
}

// truncateRunes 截断到maxRunes个rune，被截断时追加省略号标记
func truncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}
