package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 摄取管线错误
	ErrCodeParse     ErrorCode = "PARSE_ERROR"     // 源文档损坏或格式不支持
	ErrCodeEmbedding ErrorCode = "EMBEDDING_ERROR" // 向量化能力不可用或拒绝输入
	ErrCodeIndexLoad ErrorCode = "INDEX_LOAD_ERROR"
	ErrCodeIndexBuild ErrorCode = "INDEX_BUILD_ERROR"

	// 生成错误（触发抽取式降级，不对外暴露）
	ErrCodeGeneration ErrorCode = "GENERATION_ERROR"
)

// AppError 应用错误结构体
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New 创建应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// IsCode 判断err是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ParseError 源文档解析失败
func ParseError(message string, cause error) *AppError {
	return Wrap(ErrCodeParse, message, cause)
}

// EmbeddingError 向量化失败
func EmbeddingError(message string, cause error) *AppError {
	return Wrap(ErrCodeEmbedding, message, cause)
}

// IndexLoadError 索引加载失败（查询时按文档降级，不中断整个查询）
func IndexLoadError(paperID string, cause error) *AppError {
	return Wrap(ErrCodeIndexLoad, fmt.Sprintf("failed to load index for paper %s", paperID), cause)
}

// IndexBuildError 索引构建失败
func IndexBuildError(paperID string, cause error) *AppError {
	return Wrap(ErrCodeIndexBuild, fmt.Sprintf("failed to build index for paper %s", paperID), cause)
}

// GenerationError 生成能力失败
func GenerationError(cause error) *AppError {
	return Wrap(ErrCodeGeneration, "answer generation failed", cause)
}
