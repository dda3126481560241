package rag

// Chunk 文档切分后的文本块，向量化与检索的基本单元
// ChunkID 在单篇论文内唯一（零填充序号），跨论文不唯一。
type Chunk struct {
	PaperID   string `json:"paper_id"`
	Title     string `json:"title"`
	ChunkID   string `json:"chunk_id"`
	Section   string `json:"section,omitempty"`
	PageStart int    `json:"page_start,omitempty"`
	PageEnd   int    `json:"page_end,omitempty"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
}

// ScoredChunk 带相似度距离的检索结果，距离越小越相似
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// Citation 单条引用，1基序号与证据顺序一一对应
type Citation struct {
	PaperID    string `json:"paper_id"`
	Title      string `json:"title"`
	Section    string `json:"section,omitempty"`
	PageStart  int    `json:"page_start,omitempty"`
	PageEnd    int    `json:"page_end,omitempty"`
	ChunkID    string `json:"chunk_id"`
	Snippet    string `json:"snippet"`
	Text       string `json:"text"`
	SourceLink string `json:"source_link,omitempty"`
}
