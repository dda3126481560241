package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aihub/paperqa-go/internal/cache"
	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/aihub/paperqa-go/internal/logger"
	"go.uber.org/zap"
)

// indexPayload 本地索引的持久化格式
type indexPayload struct {
	Version IndexVersion `json:"version"`
	Chunks  []Chunk      `json:"chunks"`
	Vectors [][]float32  `json:"vectors"`
}

// LocalIndexStore 本地平面索引存储
// 每篇论文一个目录 <base>/<paper_id>/index.json，构建后只读；
// 检索为暴力平方L2距离扫描，论文级语料量下足够快。
type LocalIndexStore struct {
	basePath string
	embedder Embedder
	cache    *cache.IndexCache
}

// NewLocalIndexStore 创建本地索引存储
func NewLocalIndexStore(basePath string, embedder Embedder, indexCache *cache.IndexCache) (*LocalIndexStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local index path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}
	return &LocalIndexStore{basePath: basePath, embedder: embedder, cache: indexCache}, nil
}

func (s *LocalIndexStore) indexPath(paperID string) string {
	return filepath.Join(s.basePath, paperID, "index.json")
}

// Build 构建并持久化索引，写入先落临时文件再rename，失败不会留下可加载的半成品
func (s *LocalIndexStore) Build(ctx context.Context, paperID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return apperrors.IndexBuildError(paperID, fmt.Errorf("no chunks to index"))
	}
	if len(chunks) != len(vectors) {
		return apperrors.IndexBuildError(paperID, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors)))
	}
	dims := s.embedder.Dimensions()
	for i, vec := range vectors {
		if dims > 0 && len(vec) != dims {
			return apperrors.IndexBuildError(paperID, fmt.Errorf("vector %d dimension mismatch: %d != %d", i, len(vec), dims))
		}
	}

	payload := indexPayload{
		Version: IndexVersion{Model: s.embedder.Model(), Dimensions: dims},
		Chunks:  chunks,
		Vectors: vectors,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}

	dir := filepath.Dir(s.indexPath(paperID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}
	tmp := s.indexPath(paperID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}
	if err := os.Rename(tmp, s.indexPath(paperID)); err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, paperID, data); err != nil {
			logger.Warn("failed to cache index payload", zap.String("paper_id", paperID), zap.Error(err))
		}
	}
	return nil
}

// Load 加载索引并校验版本标签
func (s *LocalIndexStore) Load(ctx context.Context, paperID string) (VectorIndex, error) {
	var data []byte

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, paperID); err == nil && cached != nil {
			data = cached
		}
	}

	if data == nil {
		raw, err := os.ReadFile(s.indexPath(paperID))
		if err != nil {
			return nil, apperrors.IndexLoadError(paperID, err)
		}
		data = raw
		if s.cache != nil {
			if err := s.cache.Set(ctx, paperID, data); err != nil {
				logger.Debug("failed to cache index payload", zap.String("paper_id", paperID), zap.Error(err))
			}
		}
	}

	var payload indexPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.IndexLoadError(paperID, err)
	}

	current := IndexVersion{Model: s.embedder.Model(), Dimensions: s.embedder.Dimensions()}
	if payload.Version != current {
		return nil, apperrors.IndexLoadError(paperID,
			fmt.Errorf("index version mismatch: built with %s/%d, current %s/%d; re-ingest required",
				payload.Version.Model, payload.Version.Dimensions, current.Model, current.Dimensions))
	}
	if len(payload.Chunks) != len(payload.Vectors) {
		return nil, apperrors.IndexLoadError(paperID, fmt.Errorf("corrupt index payload"))
	}

	return &flatIndex{chunks: payload.Chunks, vectors: payload.Vectors}, nil
}

// Remove 删除索引并使缓存失效
func (s *LocalIndexStore) Remove(ctx context.Context, paperID string) error {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, paperID); err != nil {
			logger.Warn("failed to invalidate index cache", zap.String("paper_id", paperID), zap.Error(err))
		}
	}
	if err := os.RemoveAll(filepath.Join(s.basePath, paperID)); err != nil {
		return fmt.Errorf("failed to remove index for paper %s: %w", paperID, err)
	}
	return nil
}

// flatIndex 内存中的平面向量索引
type flatIndex struct {
	chunks  []Chunk
	vectors [][]float32
}

// Search 暴力扫描，按平方L2距离升序返回top-k，距离相等时保持chunk原始顺序
func (idx *flatIndex) Search(vector []float32, k int) ([]ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	scored := make([]ScoredChunk, 0, len(idx.chunks))
	for i := range idx.chunks {
		scored = append(scored, ScoredChunk{
			Chunk:    idx.chunks[i],
			Distance: squaredL2(vector, idx.vectors[i]),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
