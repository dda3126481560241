package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aihub/paperqa-go/internal/config"
	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/aihub/paperqa-go/internal/metrics"
	"github.com/aihub/paperqa-go/internal/models"
	"github.com/aihub/paperqa-go/internal/paperstore"
	"github.com/aihub/paperqa-go/internal/rag"
	"go.uber.org/zap"
)

// ChatService 基于已索引论文的问答服务
type ChatService struct {
	store       paperstore.Store
	retriever   *rag.Retriever
	answerer    *rag.GroundedAnswerer
	collector   *metrics.Collector
	topK        int
	snippetSize int
	baseURL     string
}

// NewChatService 创建问答服务
func NewChatService(
	cfg *config.Config,
	store paperstore.Store,
	retriever *rag.Retriever,
	answerer *rag.GroundedAnswerer,
	collector *metrics.Collector,
) *ChatService {
	if collector != nil && answerer != nil {
		answerer.SetFallbackHook(collector.RecordFallback)
	}
	return &ChatService{
		store:       store,
		retriever:   retriever,
		answerer:    answerer,
		collector:   collector,
		topK:        cfg.Knowledge.TopK,
		snippetSize: cfg.Knowledge.SnippetSize,
		baseURL:     strings.TrimRight(cfg.Server.BaseURL, "/"),
	}
}

// ChatRequest 问答请求
// paper_filter为"all"或空时检索全部已索引论文，否则限定为单篇论文；
// top_k为0时使用服务端默认值
type ChatRequest struct {
	Question    string `json:"question" validate:"required,min=1,max=2000"`
	PaperFilter string `json:"paper_filter" validate:"omitempty,max=64"`
	TopK        int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// ChatResponse 问答响应
// citations与答案中的 [i] 标记一一对应，即使答案是拒答串也会返回引用
type ChatResponse struct {
	Answer    string         `json:"answer"`
	Citations []rag.Citation `json:"citations"`
}

// Ask 回答一个关于论文内容的问题
func (s *ChatService) Ask(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBadRequest, err.Error(), nil)
	}

	start := time.Now()
	paperIDs, err := s.resolvePaperIDs(req.PaperFilter)
	if err != nil {
		s.recordQuery("failed", start)
		return nil, err
	}
	if len(paperIDs) == 0 {
		s.recordQuery("refused", start)
		return &ChatResponse{Answer: rag.RefusalMessage, Citations: []rag.Citation{}}, nil
	}

	k := req.TopK
	if k <= 0 {
		k = s.topK
	}

	scored, err := s.retriever.Retrieve(ctx, req.Question, paperIDs, k)
	if err != nil {
		s.recordQuery("failed", start)
		return nil, err
	}

	citations := rag.FormatCitations(scored, s.snippetSize)
	for i := range citations {
		citations[i].SourceLink = fmt.Sprintf("%s/api/papers/%s/pdf", s.baseURL, citations[i].PaperID)
	}

	answer := s.answerer.Answer(ctx, req.Question, citations)

	status := "answered"
	if answer == rag.RefusalMessage {
		status = "refused"
	}
	s.recordQuery(status, start)

	logger.Debug("chat query served",
		zap.Int("papers", len(paperIDs)),
		zap.Int("citations", len(citations)),
		zap.String("status", status))

	if citations == nil {
		citations = []rag.Citation{}
	}
	return &ChatResponse{Answer: answer, Citations: citations}, nil
}

// resolvePaperIDs 展开检索范围，只保留indexed状态的论文
// 处理中或失败的论文不参与检索，点名的论文若不可检索则范围为空
func (s *ChatService) resolvePaperIDs(filter string) ([]string, error) {
	papers, err := s.store.List()
	if err != nil {
		return nil, err
	}

	var all []string
	indexed := make(map[string]bool, len(papers))
	for _, p := range papers {
		if p.Status == models.PaperStatusIndexed {
			indexed[p.PaperID] = true
			all = append(all, p.PaperID)
		}
	}

	if filter == "" || filter == "all" {
		return all, nil
	}
	if indexed[filter] {
		return []string{filter}, nil
	}
	return nil, nil
}

func (s *ChatService) recordQuery(status string, start time.Time) {
	if s.collector != nil {
		s.collector.RecordQuery(status, time.Since(start))
	}
}
