package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/aihub/paperqa-go/internal/di"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/aihub/paperqa-go/internal/services"
	"go.uber.org/zap"
)

// PaperController 论文上传与摄取控制器
type PaperController struct {
	BaseController
	papers *services.PaperService
}

// Prepare 从DI容器获取论文服务
func (c *PaperController) Prepare() {
	if err := di.Invoke(func(s *services.PaperService) {
		c.papers = s
	}); err != nil {
		logger.Error("failed to resolve paper service", zap.Error(err))
	}
}

// List 获取论文列表
func (c *PaperController) List() {
	papers, err := c.papers.ListPapers()
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"papers": papers})
}

// CreateUploadURL 签发上传地址
func (c *PaperController) CreateUploadURL() {
	var req services.CreateUploadURLRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := c.papers.CreateUploadURL(req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(ticket)
}

// Upload 接收上传的文件内容
func (c *PaperController) Upload() {
	key := c.GetString("key")
	body := c.Ctx.Input.RequestBody
	if len(body) == 0 {
		c.JSONError(http.StatusBadRequest, "request body is empty")
		return
	}

	ctx := c.Ctx.Request.Context()
	if err := c.papers.SaveUpload(ctx, key, bytes.NewReader(body), int64(len(body))); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]string{"file_key": key})
}

// Ingest 摄取一篇已上传的论文
func (c *PaperController) Ingest() {
	var req services.IngestRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	paper, err := c.papers.Ingest(c.Ctx.Request.Context(), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(paper)
}

// GetFile 返回论文原始文件
func (c *PaperController) GetFile() {
	paperID := c.Ctx.Input.Param(":id")

	reader, filename, err := c.papers.GetPaperFile(c.Ctx.Request.Context(), paperID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Ctx.Output.Header("Content-Type", contentType)
	c.Ctx.Output.Header("Content-Disposition", `inline; filename="`+filename+`"`)

	if _, err := io.Copy(c.Ctx.ResponseWriter, reader); err != nil {
		logger.Warn("failed to stream paper file",
			zap.String("paper_id", paperID), zap.Error(err))
	}
}
