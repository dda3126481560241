package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aihub/paperqa-go/internal/config"
	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/aihub/paperqa-go/internal/metrics"
	"github.com/aihub/paperqa-go/internal/models"
	"github.com/aihub/paperqa-go/internal/paperstore"
	"github.com/aihub/paperqa-go/internal/rag"
	"github.com/aihub/paperqa-go/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaperService 论文上传与摄取服务
type PaperService struct {
	store      paperstore.Store
	objects    storage.ObjectStore
	parser     *rag.ParserManager
	chunker    *rag.Chunker
	embedder   rag.Embedder
	indexStore rag.IndexStore
	collector  *metrics.Collector
	baseURL    string
}

// NewPaperService 创建论文服务
func NewPaperService(
	cfg *config.Config,
	store paperstore.Store,
	objects storage.ObjectStore,
	embedder rag.Embedder,
	indexStore rag.IndexStore,
	collector *metrics.Collector,
) *PaperService {
	return &PaperService{
		store:      store,
		objects:    objects,
		parser:     rag.NewParserManager(),
		chunker:    rag.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap),
		embedder:   embedder,
		indexStore: indexStore,
		collector:  collector,
		baseURL:    strings.TrimRight(cfg.Server.BaseURL, "/"),
	}
}

// UploadTicket 上传凭据，客户端向URL发PUT请求写入文件内容
type UploadTicket struct {
	UploadURL string `json:"upload_url"`
	FileKey   string `json:"file_key"`
}

// CreateUploadURLRequest 获取上传地址请求
type CreateUploadURLRequest struct {
	Filename string `json:"filename" validate:"required,min=1,max=255"`
}

// IngestRequest 摄取请求
type IngestRequest struct {
	FileKey string `json:"file_key" validate:"required,min=1,max=512"`
	Title   string `json:"title" validate:"omitempty,max=512"`
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// CreateUploadURL 为一次上传签发key与目标URL
// key格式 <unix>_<uuid片段>_<清洗后的文件名>，同名文件可重复上传互不覆盖
func (s *PaperService) CreateUploadURL(req CreateUploadURLRequest) (*UploadTicket, error) {
	if err := validateRequest(req); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBadRequest, err.Error(), nil)
	}
	if !s.parser.Supports(req.Filename) {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest,
			fmt.Sprintf("unsupported file format: %s", filepath.Ext(req.Filename)))
	}

	safeName := unsafeKeyChars.ReplaceAllString(filepath.Base(req.Filename), "_")
	key := fmt.Sprintf("%d_%s_%s", time.Now().Unix(), uuid.NewString()[:8], safeName)

	return &UploadTicket{
		UploadURL: fmt.Sprintf("%s/api/papers/upload?key=%s", s.baseURL, url.QueryEscape(key)),
		FileKey:   key,
	}, nil
}

// SaveUpload 保存上传的文件内容
func (s *PaperService) SaveUpload(ctx context.Context, key string, reader io.Reader, size int64) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "upload key is empty")
	}
	return s.objects.Put(ctx, key, reader, size)
}

// Ingest 摄取一篇论文：解析、分块、向量化、建索引
// 状态机 processing → indexed | failed；任意阶段失败都回收半成品索引，
// failed状态的论文不参与检索。
func (s *PaperService) Ingest(ctx context.Context, req IngestRequest) (*models.Paper, error) {
	if err := validateRequest(req); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBadRequest, err.Error(), nil)
	}

	paperID := newPaperID()
	title := req.Title
	if title == "" {
		title = titleFromKey(req.FileKey)
	}

	now := time.Now()
	paper := models.Paper{
		PaperID:   paperID,
		Title:     title,
		Status:    models.PaperStatusProcessing,
		FileKey:   req.FileKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Upsert(paper); err != nil {
		return nil, err
	}

	result, err := s.buildIndex(ctx, &paper)
	if err != nil {
		s.markFailed(ctx, &paper, err)
		return nil, err
	}

	paper.Status = models.PaperStatusIndexed
	paper.ChunkCount = result
	paper.UpdatedAt = time.Now()
	if err := s.store.Upsert(paper); err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordIngest("indexed")
		s.collector.RecordChunkCount(paperID, result)
	}
	logger.Info("paper ingested",
		zap.String("paper_id", paperID),
		zap.String("title", title),
		zap.Int("chunks", result))
	return &paper, nil
}

// buildIndex 执行摄取管线，返回chunk数量
func (s *PaperService) buildIndex(ctx context.Context, paper *models.Paper) (int, error) {
	reader, err := s.objects.Get(ctx, paper.FileKey)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrCodeNotFound,
			fmt.Sprintf("uploaded file not found: %s", paper.FileKey), err)
	}
	defer reader.Close()

	stageStart := time.Now()
	pages, err := s.parser.Parse(reader, paper.FileKey)
	if err != nil {
		return 0, err
	}
	s.recordStage("parse", stageStart)

	stageStart = time.Now()
	chunks := s.chunker.SplitPages(pages)
	if len(chunks) == 0 {
		return 0, apperrors.ParseError("document contains no extractable text", nil)
	}
	for i := range chunks {
		chunks[i].PaperID = paper.PaperID
		chunks[i].Title = paper.Title
		chunks[i].ChunkID = fmt.Sprintf("c%05d", i)
	}
	s.recordStage("chunk", stageStart)

	stageStart = time.Now()
	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return 0, err
		}
		vectors = append(vectors, vec)
	}
	s.recordStage("embed", stageStart)

	stageStart = time.Now()
	if err := s.indexStore.Build(ctx, paper.PaperID, chunks, vectors); err != nil {
		return 0, err
	}
	s.recordStage("index", stageStart)

	return len(chunks), nil
}

// markFailed 标记摄取失败并回收半成品索引
func (s *PaperService) markFailed(ctx context.Context, paper *models.Paper, cause error) {
	logger.Error("paper ingestion failed",
		zap.String("paper_id", paper.PaperID),
		zap.String("file_key", paper.FileKey),
		zap.Error(cause))

	if err := s.indexStore.Remove(ctx, paper.PaperID); err != nil {
		logger.Warn("failed to remove partial index",
			zap.String("paper_id", paper.PaperID), zap.Error(err))
	}

	paper.Status = models.PaperStatusFailed
	paper.UpdatedAt = time.Now()
	if err := s.store.Upsert(*paper); err != nil {
		logger.Error("failed to persist failed status",
			zap.String("paper_id", paper.PaperID), zap.Error(err))
	}
	if s.collector != nil {
		s.collector.RecordIngest("failed")
	}
}

func (s *PaperService) recordStage(stage string, start time.Time) {
	if s.collector != nil {
		s.collector.RecordIngestStage(stage, time.Since(start))
	}
}

// ListPapers 返回全部论文记录，新记录在前
func (s *PaperService) ListPapers() ([]models.Paper, error) {
	return s.store.List()
}

// GetPaper 返回单篇论文记录
func (s *PaperService) GetPaper(paperID string) (*models.Paper, error) {
	paper, err := s.store.Get(paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("paper not found: %s", paperID))
	}
	return paper, nil
}

// GetPaperFile 返回论文原始文件流与文件名
func (s *PaperService) GetPaperFile(ctx context.Context, paperID string) (io.ReadCloser, string, error) {
	paper, err := s.GetPaper(paperID)
	if err != nil {
		return nil, "", err
	}
	if paper.FileKey == "" {
		return nil, "", apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("paper has no file: %s", paperID))
	}

	reader, err := s.objects.Get(ctx, paper.FileKey)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrCodeNotFound,
			fmt.Sprintf("file not found for paper: %s", paperID), err)
	}
	return reader, filenameFromKey(paper.FileKey), nil
}

// newPaperID 生成论文ID，p_前缀加uuid的前10个hex字符
func newPaperID() string {
	id := uuid.New()
	return "p_" + hex.EncodeToString(id[:])[:10]
}

var keyPrefixPattern = regexp.MustCompile(`^\d+_[0-9a-f]{8}_`)

// titleFromKey 从上传key还原标题：去掉时间戳和uuid前缀、扩展名，下划线还原为空格
func titleFromKey(key string) string {
	name := filenameFromKey(key)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled"
	}
	return name
}

// filenameFromKey 去掉key的时间戳和uuid前缀，保留原始文件名
func filenameFromKey(key string) string {
	return keyPrefixPattern.ReplaceAllString(filepath.Base(key), "")
}
