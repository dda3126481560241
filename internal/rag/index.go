package rag

import (
	"context"
	"fmt"

	"github.com/aihub/paperqa-go/internal/cache"
	"github.com/aihub/paperqa-go/internal/config"
)

// VectorIndex 单篇论文的相似度索引（构建后不可变）
type VectorIndex interface {
	// Search 返回与查询向量最近的k个chunk，按距离升序
	Search(vector []float32, k int) ([]ScoredChunk, error)
}

// IndexStore 按论文ID寻址的索引存取
// 所有实现必须与嵌入空间使用同一距离度量，否则跨索引合并的得分不可比。
type IndexStore interface {
	Build(ctx context.Context, paperID string, chunks []Chunk, vectors [][]float32) error
	Load(ctx context.Context, paperID string) (VectorIndex, error)
	Remove(ctx context.Context, paperID string) error
}

// IndexVersion 索引版本标签，加载时校验，嵌入模型变更后旧索引直接失效
type IndexVersion struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// NewIndexStore 根据配置选择索引实现
func NewIndexStore(cfg *config.Config, embedder Embedder, indexCache *cache.IndexCache) (IndexStore, error) {
	vs := cfg.Knowledge.VectorStore
	switch vs.Provider {
	case "", "local":
		return NewLocalIndexStore(vs.Local.Path, embedder, indexCache)
	case "milvus":
		return NewMilvusIndexStore(vs.Milvus, embedder)
	default:
		return nil, fmt.Errorf("unknown vector store provider: %s", vs.Provider)
	}
}
