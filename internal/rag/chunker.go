package rag

import (
	"strings"
)

// Chunker 文本分块器
// 在窗口尾部回退寻找语义边界：段落 → 换行 → 句末 → 空格，
// 都找不到时按字符硬切，避免在词中间断开。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// pageSpan 页在合并文本中的rune区间 [start, end)
type pageSpan struct {
	start  int
	end    int
	number int
}

// SplitPages 将按页标注的文本切分为带页码范围的chunk
// 页码1起始；chunk落在单页内时PageStart==PageEnd，跨页时PageStart<PageEnd。
func (c *Chunker) SplitPages(pages []Page) []Chunk {
	var builder strings.Builder
	var spans []pageSpan

	offset := 0
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		if offset > 0 {
			builder.WriteString("\n")
			offset++
		}
		runeLen := len([]rune(text))
		spans = append(spans, pageSpan{start: offset, end: offset + runeLen, number: page.Number})
		builder.WriteString(text)
		offset += runeLen
	}

	runes := []rune(builder.String())
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.findBreak(runes, start, end)
		}

		text, leadTrim, tailTrim := trimSpan(runes[start:end])
		if text != "" {
			chunks = append(chunks, Chunk{
				Index:     len(chunks),
				Text:      text,
				PageStart: pageAt(spans, start+leadTrim),
				PageEnd:   pageAt(spans, end-tailTrim-1),
			})
		}

		if end == len(runes) {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findBreak 在 (start+chunkSize/2, limit] 内回退寻找最佳切分点
func (c *Chunker) findBreak(runes []rune, start, limit int) int {
	floor := start + c.chunkSize/2

	// 段落边界
	for i := limit - 1; i > floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// 换行
	for i := limit - 1; i > floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// 句末标点
	for i := limit - 1; i > floor; i-- {
		switch runes[i] {
		case '.', '!', '?', '。', '！', '？':
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				return i + 1
			}
		}
	}
	// 空格
	for i := limit - 1; i > floor; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	// 硬切
	return limit
}

// trimSpan 去除首尾空白并返回被去除的rune数，供页码定位使用
func trimSpan(span []rune) (string, int, int) {
	lead := 0
	for lead < len(span) && isSpaceRune(span[lead]) {
		lead++
	}
	tail := 0
	for lead+tail < len(span) && isSpaceRune(span[len(span)-1-tail]) {
		tail++
	}
	return string(span[lead : len(span)-tail]), lead, tail
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// pageAt 返回指定rune偏移所在的页码
func pageAt(spans []pageSpan, offset int) int {
	for _, span := range spans {
		if offset < span.end {
			return span.number
		}
	}
	if len(spans) > 0 {
		return spans[len(spans)-1].number
	}
	return 0
}
