package rag

import (
	"context"
	"sort"
	"sync"

	"github.com/aihub/paperqa-go/internal/logger"
	"go.uber.org/zap"
)

// Retriever 跨多个论文索引的全局top-k检索
// 各论文索引相互独立，先在每个索引内取足候选，再按距离全局合并；
// 每篇至少取 max(minPerPaper, k) 个候选，避免某一篇仅因本地候选多
// 而在全局截断中占据不成比例的名额。
type Retriever struct {
	embedder    Embedder
	indexStore  IndexStore
	minPerPaper int
	maxParallel int
}

// NewRetriever 创建检索器
func NewRetriever(embedder Embedder, indexStore IndexStore, minPerPaper, maxParallel int) *Retriever {
	if minPerPaper < 1 {
		minPerPaper = 2
	}
	if maxParallel < 1 {
		maxParallel = 4
	}
	return &Retriever{
		embedder:    embedder,
		indexStore:  indexStore,
		minPerPaper: minPerPaper,
		maxParallel: maxParallel,
	}
}

// Retrieve 返回按距离升序的全局top-k chunk
// 单篇论文索引加载失败只跳过该论文，不中断整个查询；
// 距离相等时保持稳定顺序（论文输入顺序，然后各自的本地名次）。
func (r *Retriever) Retrieve(ctx context.Context, query string, paperIDs []string, k int) ([]ScoredChunk, error) {
	if len(paperIDs) == 0 || k <= 0 {
		return nil, nil
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	perPaper := k
	if perPaper < r.minPerPaper {
		perPaper = r.minPerPaper
	}

	// 并行加载各论文索引，合并等待全部完成；结果按论文输入顺序归位
	perPaperResults := make([][]ScoredChunk, len(paperIDs))
	sem := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup

	for i, paperID := range paperIDs {
		wg.Add(1)
		go func(slot int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			index, err := r.indexStore.Load(ctx, id)
			if err != nil {
				logger.Warn("skipping paper: index unavailable",
					zap.String("paper_id", id), zap.Error(err))
				return
			}
			matches, err := index.Search(queryVector, perPaper)
			if err != nil {
				logger.Warn("skipping paper: search failed",
					zap.String("paper_id", id), zap.Error(err))
				return
			}
			perPaperResults[slot] = matches
		}(i, paperID)
	}
	wg.Wait()

	var pool []ScoredChunk
	for _, matches := range perPaperResults {
		pool = append(pool, matches...)
	}

	// 各索引共享同一嵌入空间与距离度量，跨索引距离可比
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Distance < pool[j].Distance
	})

	if k < len(pool) {
		pool = pool[:k]
	}
	return pool, nil
}
