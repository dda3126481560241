package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aihub/paperqa-go/internal/config"
	"github.com/aihub/paperqa-go/internal/logger"
	"go.uber.org/zap"
)

// RefusalMessage 证据无法回答时的固定拒答串，逐字输出
const RefusalMessage = "Please ask a question related to the content of the uploaded papers."

// NotFoundMessage 证据为空时抽取式降级的固定输出
const NotFoundMessage = "Not found in the provided papers."

// DefaultEvidenceMaxChars 单条证据送入生成器前的硬截断长度
const DefaultEvidenceMaxChars = 1200

const answerSystemPrompt = "You are an academic research assistant.\n\n" +
	"Your task:\n" +
	"1) FIRST decide whether the user's question is a factual, technical question " +
	"that can be answered using ONLY the provided Evidence.\n" +
	"2) If the question is not about the content of the papers, is a greeting, " +
	"or cannot be answered using the Evidence, respond EXACTLY with:\n" +
	"\"" + RefusalMessage + "\"\n\n" +
	"IMPORTANT:\n" +
	"- You must EITHER provide an answer OR provide the refusal message, NEVER both.\n\n" +
	"If the question IS answerable using the Evidence:\n" +
	"- Answer using ONLY the Evidence.\n" +
	"- Cite every non-trivial claim using bracket citations like [1] or [1][2].\n" +
	"- Do NOT add external knowledge.\n" +
	"- Keep the answer concise, technical, and neutral.\n" +
	"- Do not use Markdown formatting in the response.\n\n" +
	"Mathematical formatting rules (MANDATORY):\n" +
	"- Any mathematical expression MUST be written in LaTeX.\n" +
	"- Do NOT use Unicode math symbols (e.g., γ, ϵ, −, ×) outside LaTeX.\n" +
	"- Use inline math with \\( ... \\).\n" +
	"- Use display equations with \\[ ... \\] on their own lines.\n" +
	"- Do NOT format equations using plain square brackets [ ... ].\n" +
	"- Plain-text math is not allowed.\n" +
	"- Do NOT wrap natural language sentences in LaTeX.\n" +
	"- Do NOT use \\text{...} for explanatory text.\n" +
	"- LaTeX is ONLY for mathematical symbols, equations, or formulas."

const answerUserInstructions = "Instructions:\n" +
	"- FIRST determine whether the question can be answered using the Evidence above.\n" +
	"- If the question is not about the content of the papers, respond EXACTLY with:\n" +
	"  \"" + RefusalMessage + "\"\n" +
	"- Otherwise, answer using ONLY the Evidence.\n" +
	"- Do NOT add external knowledge.\n" +
	"- Cite every non-trivial claim using bracket citations like [1] or [1][2].\n" +
	"- Do NOT use Markdown formatting in the response.\n\n" +
	"Mathematical formatting rules:\n" +
	"- Rewrite ALL mathematical expressions in LaTeX.\n" +
	"- Use inline math with \\( ... \\).\n" +
	"- Use block equations with \\[ ... \\] on their own lines.\n" +
	"- Do NOT use Unicode math symbols outside LaTeX.\n" +
	"- Do NOT use plain square brackets [ ... ] for equations.\n" +
	"- Do NOT wrap explanatory sentences in LaTeX or \\text{...}.\n" +
	"- Use LaTeX ONLY for equations or symbolic expressions.\n" +
	"Style rules:\n" +
	"- Keep the answer concise, technical, and neutral.\n" +
	"- Do not include greetings or conversational filler."

// GroundedAnswerer 有据问答器
// 信任边界：生成能力是不可信的外部函数，由指令契约约束；
// 生成失败（超时、错误、越界引用）一律降级到确定性的抽取式回答。
type GroundedAnswerer struct {
	generator        Generator
	maxTokens        int
	temperature      float32
	topP             float32
	timeout          time.Duration
	evidenceMaxChars int

	// onFallback 降级回调，由上层用于指标上报
	onFallback func(reason string)
}

// SetFallbackHook 设置抽取式降级时的回调
func (a *GroundedAnswerer) SetFallbackHook(hook func(reason string)) {
	a.onFallback = hook
}

func (a *GroundedAnswerer) reportFallback(reason string) {
	if a.onFallback != nil {
		a.onFallback(reason)
	}
}

// NewGroundedAnswerer 创建问答器
func NewGroundedAnswerer(generator Generator, cfg config.AIConfig) *GroundedAnswerer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	evidenceMax := cfg.EvidenceMaxChars
	if evidenceMax <= 0 {
		evidenceMax = DefaultEvidenceMaxChars
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 450
	}
	return &GroundedAnswerer{
		generator:        generator,
		maxTokens:        maxTokens,
		temperature:      cfg.Temperature,
		topP:             cfg.TopP,
		timeout:          timeout,
		evidenceMaxChars: evidenceMax,
	}
}

// Answer 生成有据回答或固定拒答串，任何生成失败都降级到抽取式回答
func (a *GroundedAnswerer) Answer(ctx context.Context, question string, citations []Citation) string {
	if a.generator == nil || !a.generator.Ready() {
		a.reportFallback("not_ready")
		return AnswerExtractively(question, citations)
	}

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user := a.buildUserPrompt(question, citations)
	answer, err := a.generator.Generate(genCtx, answerSystemPrompt, user, GenerationOptions{
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		TopP:        a.topP,
	})
	if err != nil {
		logger.Warn("generation failed, falling back to extractive answer", zap.Error(err))
		a.reportFallback("error")
		return AnswerExtractively(question, citations)
	}
	if answer == "" {
		return NotFoundMessage
	}
	if err := validateAnswer(answer, len(citations)); err != nil {
		logger.Warn("generated answer violates citation contract, falling back",
			zap.Error(err))
		a.reportFallback("contract_violation")
		return AnswerExtractively(question, citations)
	}
	return answer
}

// buildUserPrompt 组装带编号证据块的用户提示
func (a *GroundedAnswerer) buildUserPrompt(question string, citations []Citation) string {
	evidence := FormatEvidence(citations, a.evidenceMaxChars)
	return fmt.Sprintf("Question:\n%s\n\nEvidence:\n%s\n\n%s", question, evidence, answerUserInstructions)
}

// FormatEvidence 将引用列表编排为编号证据块
// 序号1起始，与引用列表顺序一致；每块带可读出处（标题、章节、页码）。
func FormatEvidence(citations []Citation, maxChars int) string {
	if len(citations) == 0 {
		return "(no evidence retrieved)"
	}
	if maxChars <= 0 {
		maxChars = DefaultEvidenceMaxChars
	}

	blocks := make([]string, 0, len(citations))
	for i, c := range citations {
		text := strings.TrimSpace(c.Text)
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
		}

		var meta []string
		if c.Title != "" {
			meta = append(meta, c.Title)
		}
		if c.Section != "" {
			meta = append(meta, fmt.Sprintf("§ %s", c.Section))
		}
		if c.PageStart > 0 {
			if c.PageEnd > 0 && c.PageEnd != c.PageStart {
				meta = append(meta, fmt.Sprintf("p. %d-%d", c.PageStart, c.PageEnd))
			} else {
				meta = append(meta, fmt.Sprintf("p. %d", c.PageStart))
			}
		}
		metaStr := "source"
		if len(meta) > 0 {
			metaStr = strings.Join(meta, " · ")
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s", i+1, metaStr, text))
	}
	return strings.Join(blocks, "\n\n")
}

var bracketCitationPattern = regexp.MustCompile(`\[(\d+)\]`)

// validateAnswer 生成后校验（深度防御，不替代指令契约）：
// 引用序号必须落在证据范围内，拒答串不得与其他内容混杂。
func validateAnswer(answer string, evidenceCount int) error {
	hasRefusal := strings.Contains(answer, RefusalMessage)
	if hasRefusal {
		if strings.TrimSpace(strings.Trim(answer, `"`)) != RefusalMessage {
			return fmt.Errorf("answer mixes refusal with other content")
		}
		return nil
	}

	for _, match := range bracketCitationPattern.FindAllStringSubmatch(answer, -1) {
		idx, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if idx < 1 || idx > evidenceCount {
			return fmt.Errorf("citation [%d] out of range 1..%d", idx, evidenceCount)
		}
	}
	return nil
}

// AnswerExtractively 抽取式降级回答
// 无外部依赖、确定性，除空证据外永不失败；空证据返回固定NotFound串。
func AnswerExtractively(question string, citations []Citation) string {
	if len(citations) == 0 {
		return NotFoundMessage
	}

	bullets := make([]string, 0, len(citations))
	for i, c := range citations {
		page := "?"
		if c.PageStart > 0 {
			page = strconv.Itoa(c.PageStart)
		}
		text := strings.TrimSpace(c.Text)
		if runes := []rune(text); len(runes) > 220 {
			text = string(runes[:220])
		}
		bullets = append(bullets, fmt.Sprintf("- Evidence [%d] (p. %s): %s", i+1, page, text))
	}

	return "Evidence-based response (extractive):\n\n" + strings.Join(bullets, "\n")
}
