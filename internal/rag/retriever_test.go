package rag

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder 固定向量表，用于确定性的检索测试
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (s *stubEmbedder) Model() string { return "stub-embed" }

func (s *stubEmbedder) Dimensions() int { return 3 }

func (s *stubEmbedder) Ready() bool { return true }

// stubIndexStore 内存索引表，缺失条目模拟索引不可用
type stubIndexStore struct {
	indexes map[string]VectorIndex
}

func (s *stubIndexStore) Build(ctx context.Context, paperID string, chunks []Chunk, vectors [][]float32) error {
	return nil
}

func (s *stubIndexStore) Load(ctx context.Context, paperID string) (VectorIndex, error) {
	idx, ok := s.indexes[paperID]
	if !ok {
		return nil, apperrors.IndexLoadError(paperID, fmt.Errorf("index not found"))
	}
	return idx, nil
}

func (s *stubIndexStore) Remove(ctx context.Context, paperID string) error {
	delete(s.indexes, paperID)
	return nil
}

func twoPaperStore() *stubIndexStore {
	return &stubIndexStore{indexes: map[string]VectorIndex{
		"p_a": &flatIndex{
			chunks: []Chunk{
				{PaperID: "p_a", ChunkID: "c00000", Text: "a0"},
				{PaperID: "p_a", ChunkID: "c00001", Text: "a1"},
			},
			vectors: [][]float32{{1, 0, 0}, {0, 1, 0}},
		},
		"p_b": &flatIndex{
			chunks: []Chunk{
				{PaperID: "p_b", ChunkID: "c00000", Text: "b0"},
				{PaperID: "p_b", ChunkID: "c00001", Text: "b1"},
			},
			vectors: [][]float32{{0.9, 0, 0}, {0, 0, 1}},
		},
	}}
}

func TestRetrieveGlobalOrdering(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	retriever := NewRetriever(embedder, twoPaperStore(), 2, 4)

	results, err := retriever.Retrieve(context.Background(), "q", []string{"p_a", "p_b"}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// p_a/c00000 距离0，p_b/c00000 距离0.01，之后 a1 与 b1 并列距离2，
	// 稳定排序下论文输入顺序靠前的 p_a 胜出
	assert.Equal(t, "p_a", results[0].Chunk.PaperID)
	assert.Equal(t, "c00000", results[0].Chunk.ChunkID)
	assert.Equal(t, "p_b", results[1].Chunk.PaperID)
	assert.Equal(t, "c00000", results[1].Chunk.ChunkID)
	assert.Equal(t, "p_a", results[2].Chunk.PaperID)
	assert.Equal(t, "c00001", results[2].Chunk.ChunkID)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestRetrieveTruncatesToK(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {0.9, 0, 0}}}
	retriever := NewRetriever(embedder, twoPaperStore(), 2, 4)

	// k=1 但每篇仍取 minPerPaper=2 个候选，全局最优来自 p_b
	results, err := retriever.Retrieve(context.Background(), "q", []string{"p_a", "p_b"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p_b", results[0].Chunk.PaperID)
	assert.Equal(t, "c00000", results[0].Chunk.ChunkID)
}

func TestRetrieveSkipsUnavailableIndex(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	retriever := NewRetriever(embedder, twoPaperStore(), 2, 4)

	results, err := retriever.Retrieve(context.Background(), "q", []string{"p_a", "p_missing", "p_b"}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	for _, r := range results {
		assert.NotEqual(t, "p_missing", r.Chunk.PaperID)
	}
}

func TestRetrieveEmptyInputs(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	retriever := NewRetriever(embedder, twoPaperStore(), 2, 4)

	results, err := retriever.Retrieve(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = retriever.Retrieve(context.Background(), "q", []string{"p_a"}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveEmbedFailureIsFatal(t *testing.T) {
	embedder := &stubEmbedder{err: apperrors.EmbeddingError("provider down", nil)}
	retriever := NewRetriever(embedder, twoPaperStore(), 2, 4)

	_, err := retriever.Retrieve(context.Background(), "q", []string{"p_a"}, 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbedding))
}
