package rag

import (
	"context"
	"strings"

	"github.com/aihub/paperqa-go/internal/config"
	apperrors "github.com/aihub/paperqa-go/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// GenerationOptions 生成参数
type GenerationOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// Generator 文本生成能力，外部不可信，可能失败或超时
// 调用方负责超时控制与降级。
type Generator interface {
	Generate(ctx context.Context, system, user string, opts GenerationOptions) (string, error)
	Ready() bool
}

// NoopGenerator 默认占位实现
type NoopGenerator struct{}

func (n *NoopGenerator) Generate(ctx context.Context, system, user string, opts GenerationOptions) (string, error) {
	return "", apperrors.GenerationError(nil)
}

func (n *NoopGenerator) Ready() bool { return false }

// OpenAIGenerator 使用OpenAI Chat Completion API
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator 创建生成器
func NewOpenAIGenerator(cfg config.AIConfig) Generator {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return &NoopGenerator{}
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string, opts GenerationOptions) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		return "", apperrors.GenerationError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.GenerationError(nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.client != nil
}
