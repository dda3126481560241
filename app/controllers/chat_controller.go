package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/aihub/paperqa-go/internal/di"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/aihub/paperqa-go/internal/services"
	"go.uber.org/zap"
)

// ChatController 问答控制器
type ChatController struct {
	BaseController
	chat *services.ChatService
}

// Prepare 从DI容器获取问答服务
func (c *ChatController) Prepare() {
	if err := di.Invoke(func(s *services.ChatService) {
		c.chat = s
	}); err != nil {
		logger.Error("failed to resolve chat service", zap.Error(err))
	}
}

// Ask 回答关于论文内容的问题
func (c *ChatController) Ask() {
	var req services.ChatRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := c.chat.Ask(c.Ctx.Request.Context(), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(resp)
}
