package controllers

import (
	"net/http"

	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/beego/beego/v2/server/web"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 按错误码映射HTTP状态
func (c *BaseController) JSONAppError(err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsCode(err, apperrors.ErrCodeBadRequest):
		status = http.StatusBadRequest
	case apperrors.IsCode(err, apperrors.ErrCodeNotFound):
		status = http.StatusNotFound
	case apperrors.IsCode(err, apperrors.ErrCodeParse):
		status = http.StatusUnprocessableEntity
	case apperrors.IsCode(err, apperrors.ErrCodeEmbedding),
		apperrors.IsCode(err, apperrors.ErrCodeGeneration):
		status = http.StatusBadGateway
	}
	c.JSONError(status, err.Error())
}
