package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aihub/paperqa-go/internal/config"
	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// MilvusIndexStore Milvus向量索引存储
// 每篇论文一个collection（<prefix>_<paper_id>），度量固定为L2，
// 与本地实现保持"距离越小越相似"的升序语义。
type MilvusIndexStore struct {
	milvusClient     client.Client
	collectionPrefix string
	embedder         Embedder
}

// NewMilvusIndexStore 创建Milvus索引存储
func NewMilvusIndexStore(cfg config.MilvusConfig, embedder Embedder) (*MilvusIndexStore, error) {
	address := cfg.Address
	if address == "" {
		address = "localhost:19530"
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "paper_vectors"
	}
	database := cfg.Database
	if database == "" {
		database = "default"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       address,
		DBName:        database,
		Username:      cfg.Username,
		Password:      cfg.Password,
		EnableTLSAuth: cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &MilvusIndexStore{
		milvusClient:     milvusClient,
		collectionPrefix: prefix,
		embedder:         embedder,
	}, nil
}

func (s *MilvusIndexStore) collectionName(paperID string) string {
	return fmt.Sprintf("%s_%s", s.collectionPrefix, paperID)
}

// Build 重建论文collection并写入全部chunk向量
func (s *MilvusIndexStore) Build(ctx context.Context, paperID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(chunks) != len(vectors) {
		return apperrors.IndexBuildError(paperID, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors)))
	}

	name := s.collectionName(paperID)
	dims := s.embedder.Dimensions()
	if dims == 0 && len(vectors) > 0 {
		dims = len(vectors[0])
	}

	// 重新摄取同一论文时先丢弃旧collection，保证无陈旧向量残留
	has, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}
	if has {
		if err := s.milvusClient.DropCollection(ctx, name); err != nil {
			return apperrors.IndexBuildError(paperID, err)
		}
	}

	// 版本标签存放在collection描述中，加载时校验
	versionJSON, _ := json.Marshal(IndexVersion{Model: s.embedder.Model(), Dimensions: dims})
	schema := &entity.Schema{
		CollectionName: name,
		Description:    string(versionJSON),
		Fields: []*entity.Field{
			{Name: "id", DataType: entity.FieldTypeInt64, PrimaryKey: true, AutoID: false},
			{Name: "chunk_id", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
			{Name: "title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "1024"}},
			{Name: "section", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "256"}},
			{Name: "page_start", DataType: entity.FieldTypeInt64},
			{Name: "page_end", DataType: entity.FieldTypeInt64},
			{Name: "text", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "65535"}},
			{Name: "vector", DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dims)}},
		},
	}
	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}

	ids := make([]int64, len(chunks))
	chunkIDs := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	sections := make([]string, len(chunks))
	pageStarts := make([]int64, len(chunks))
	pageEnds := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = int64(i)
		chunkIDs[i] = chunk.ChunkID
		titles[i] = chunk.Title
		sections[i] = chunk.Section
		pageStarts[i] = int64(chunk.PageStart)
		pageEnds[i] = int64(chunk.PageEnd)
		texts[i] = chunk.Text
	}

	_, err = s.milvusClient.Insert(ctx, name, "",
		entity.NewColumnInt64("id", ids),
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("section", sections),
		entity.NewColumnInt64("page_start", pageStarts),
		entity.NewColumnInt64("page_end", pageEnds),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", dims, vectors),
	)
	if err != nil {
		return apperrors.IndexBuildError(paperID, err)
	}

	if err := s.milvusClient.Flush(ctx, name, false); err != nil {
		logger.Warn("failed to flush milvus collection", zap.String("collection", name), zap.Error(err))
	}

	var index entity.Index
	index, err = entity.NewIndexHNSW(entity.L2, 8, 64)
	if err != nil {
		index, err = entity.NewIndexIvfFlat(entity.L2, 128)
		if err != nil {
			return apperrors.IndexBuildError(paperID, err)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, name, "vector", index, false); err != nil {
		logger.Warn("failed to create milvus index", zap.String("collection", name), zap.Error(err))
	}

	return nil
}

// Load 校验collection存在与版本标签，返回可检索句柄
func (s *MilvusIndexStore) Load(ctx context.Context, paperID string) (VectorIndex, error) {
	name := s.collectionName(paperID)

	has, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return nil, apperrors.IndexLoadError(paperID, err)
	}
	if !has {
		return nil, apperrors.IndexLoadError(paperID, fmt.Errorf("collection %s not found", name))
	}

	desc, err := s.milvusClient.DescribeCollection(ctx, name)
	if err != nil {
		return nil, apperrors.IndexLoadError(paperID, err)
	}
	var version IndexVersion
	if err := json.Unmarshal([]byte(desc.Schema.Description), &version); err == nil {
		current := IndexVersion{Model: s.embedder.Model(), Dimensions: s.embedder.Dimensions()}
		if current.Model != "" && version != current {
			return nil, apperrors.IndexLoadError(paperID,
				fmt.Errorf("index version mismatch: built with %s/%d, current %s/%d; re-ingest required",
					version.Model, version.Dimensions, current.Model, current.Dimensions))
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, name, false); err != nil {
		return nil, apperrors.IndexLoadError(paperID, err)
	}

	return &milvusIndex{store: s, paperID: paperID, collection: name}, nil
}

// Remove 丢弃论文collection
func (s *MilvusIndexStore) Remove(ctx context.Context, paperID string) error {
	name := s.collectionName(paperID)
	has, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !has {
		return nil
	}
	if err := s.milvusClient.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// milvusIndex 单篇论文collection的检索句柄
type milvusIndex struct {
	store      *MilvusIndexStore
	paperID    string
	collection string
}

func (idx *milvusIndex) Search(vector []float32, k int) ([]ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	results, err := idx.store.milvusClient.Search(
		ctx,
		idx.collection,
		[]string{},
		"",
		[]string{"chunk_id", "title", "section", "page_start", "page_end", "text"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.L2,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	result := results[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	scored := make([]ScoredChunk, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		chunk := Chunk{PaperID: idx.paperID, Index: i}
		for _, field := range result.Fields {
			switch field.Name() {
			case "chunk_id":
				if col, ok := field.(*entity.ColumnVarChar); ok {
					chunk.ChunkID, _ = col.ValueByIdx(i)
				}
			case "title":
				if col, ok := field.(*entity.ColumnVarChar); ok {
					chunk.Title, _ = col.ValueByIdx(i)
				}
			case "section":
				if col, ok := field.(*entity.ColumnVarChar); ok {
					chunk.Section, _ = col.ValueByIdx(i)
				}
			case "page_start":
				if col, ok := field.(*entity.ColumnInt64); ok {
					if v, err := col.ValueByIdx(i); err == nil {
						chunk.PageStart = int(v)
					}
				}
			case "page_end":
				if col, ok := field.(*entity.ColumnInt64); ok {
					if v, err := col.ValueByIdx(i); err == nil {
						chunk.PageEnd = int(v)
					}
				}
			case "text":
				if col, ok := field.(*entity.ColumnVarChar); ok {
					chunk.Text, _ = col.ValueByIdx(i)
				}
			}
		}
		// L2度量下score即距离，升序
		scored = append(scored, ScoredChunk{Chunk: chunk, Distance: float64(result.Scores[i])})
	}
	return scored, nil
}
