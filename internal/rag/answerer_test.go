package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aihub/paperqa-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator 返回预设回答，记录收到的提示词
type stubGenerator struct {
	answer string
	err    error
	ready  bool

	gotSystem string
	gotUser   string
	gotOpts   GenerationOptions
}

func (s *stubGenerator) Generate(ctx context.Context, system, user string, opts GenerationOptions) (string, error) {
	s.gotSystem = system
	s.gotUser = user
	s.gotOpts = opts
	return s.answer, s.err
}

func (s *stubGenerator) Ready() bool { return s.ready }

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		MaxTokens:        450,
		Temperature:      0.2,
		TopP:             0.9,
		TimeoutSeconds:   5,
		EvidenceMaxChars: 1200,
	}
}

func sampleCitations() []Citation {
	return []Citation{
		{PaperID: "p_a", Title: "Paper A", Section: "Method", PageStart: 2, PageEnd: 2, ChunkID: "c00001", Text: "The learning rate was set to 0.001."},
		{PaperID: "p_b", Title: "Paper B", PageStart: 5, PageEnd: 6, ChunkID: "c00004", Text: "Accuracy improved by 3.2 points."},
	}
}

func TestAnswerExtractivelyEmptyCitations(t *testing.T) {
	assert.Equal(t, NotFoundMessage, AnswerExtractively("anything", nil))
	assert.Equal(t, NotFoundMessage, AnswerExtractively("anything", []Citation{}))
}

func TestAnswerExtractivelyBullets(t *testing.T) {
	got := AnswerExtractively("q", sampleCitations())
	want := "Evidence-based response (extractive):\n\n" +
		"- Evidence [1] (p. 2): The learning rate was set to 0.001.\n" +
		"- Evidence [2] (p. 5): Accuracy improved by 3.2 points."
	assert.Equal(t, want, got)
}

func TestAnswerExtractivelyDeterministic(t *testing.T) {
	citations := sampleCitations()
	first := AnswerExtractively("q", citations)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, AnswerExtractively("q", citations))
	}
}

func TestAnswerExtractivelyTruncatesLongText(t *testing.T) {
	long := strings.Repeat("y", 300)
	got := AnswerExtractively("q", []Citation{{PageStart: 1, Text: long}})
	assert.Contains(t, got, strings.Repeat("y", 220))
	assert.NotContains(t, got, strings.Repeat("y", 221))
}

func TestAnswerExtractivelyUnknownPage(t *testing.T) {
	got := AnswerExtractively("q", []Citation{{Text: "no page info"}})
	assert.Contains(t, got, "- Evidence [1] (p. ?): no page info")
}

func TestAnswerFallsBackWhenGeneratorNotReady(t *testing.T) {
	answerer := NewGroundedAnswerer(&stubGenerator{ready: false}, testAIConfig())
	got := answerer.Answer(context.Background(), "q", sampleCitations())
	assert.Equal(t, AnswerExtractively("q", sampleCitations()), got)
}

func TestAnswerFallsBackOnGeneratorError(t *testing.T) {
	gen := &stubGenerator{ready: true, err: fmt.Errorf("upstream timeout")}
	answerer := NewGroundedAnswerer(gen, testAIConfig())
	got := answerer.Answer(context.Background(), "q", sampleCitations())
	assert.Equal(t, AnswerExtractively("q", sampleCitations()), got)
}

func TestAnswerFallsBackOnOutOfRangeCitation(t *testing.T) {
	gen := &stubGenerator{ready: true, answer: "The rate was 0.001 [3]."}
	answerer := NewGroundedAnswerer(gen, testAIConfig())
	got := answerer.Answer(context.Background(), "q", sampleCitations())
	assert.Equal(t, AnswerExtractively("q", sampleCitations()), got)
}

func TestAnswerPassesThroughValidAnswer(t *testing.T) {
	gen := &stubGenerator{ready: true, answer: "The learning rate was 0.001 [1] and accuracy rose [2]."}
	answerer := NewGroundedAnswerer(gen, testAIConfig())
	got := answerer.Answer(context.Background(), "What was the learning rate?", sampleCitations())
	assert.Equal(t, gen.answer, got)

	// 提示词必须携带问题与编号证据
	assert.Contains(t, gen.gotUser, "Question:\nWhat was the learning rate?")
	assert.Contains(t, gen.gotUser, "[1] Paper A · § Method · p. 2")
	assert.Contains(t, gen.gotUser, "[2] Paper B · p. 5-6")
	assert.Equal(t, 450, gen.gotOpts.MaxTokens)
	assert.Equal(t, float32(0.2), gen.gotOpts.Temperature)
	assert.Equal(t, float32(0.9), gen.gotOpts.TopP)
}

func TestAnswerRefusalPassthrough(t *testing.T) {
	gen := &stubGenerator{ready: true, answer: RefusalMessage}
	answerer := NewGroundedAnswerer(gen, testAIConfig())
	got := answerer.Answer(context.Background(), "What is the weather today?", sampleCitations())
	assert.Equal(t, RefusalMessage, got)
}

func TestAnswerFallsBackOnMixedRefusal(t *testing.T) {
	gen := &stubGenerator{ready: true, answer: "Well, " + RefusalMessage}
	answerer := NewGroundedAnswerer(gen, testAIConfig())
	got := answerer.Answer(context.Background(), "q", sampleCitations())
	assert.Equal(t, AnswerExtractively("q", sampleCitations()), got)
}

func TestAnswerEmptyGenerationReturnsNotFound(t *testing.T) {
	gen := &stubGenerator{ready: true, answer: ""}
	answerer := NewGroundedAnswerer(gen, testAIConfig())
	got := answerer.Answer(context.Background(), "q", sampleCitations())
	assert.Equal(t, NotFoundMessage, got)
}

func TestValidateAnswer(t *testing.T) {
	cases := []struct {
		name    string
		answer  string
		count   int
		wantErr bool
	}{
		{"valid citations", "Claim [1], other claim [2].", 2, false},
		{"no citations", "Plain statement.", 2, false},
		{"out of range high", "Claim [3].", 2, true},
		{"out of range zero", "Claim [0].", 2, true},
		{"exact refusal", RefusalMessage, 2, false},
		{"quoted refusal", "\"" + RefusalMessage + "\"", 2, false},
		{"refusal mixed with prose", "Sorry. " + RefusalMessage, 2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateAnswer(tc.answer, tc.count)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatEvidence(t *testing.T) {
	got := FormatEvidence(sampleCitations(), 1200)
	blocks := strings.Split(got, "\n\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, "[1] Paper A · § Method · p. 2\nThe learning rate was set to 0.001.", blocks[0])
	assert.Equal(t, "[2] Paper B · p. 5-6\nAccuracy improved by 3.2 points.", blocks[1])
}

func TestFormatEvidenceEmpty(t *testing.T) {
	assert.Equal(t, "(no evidence retrieved)", FormatEvidence(nil, 1200))
}

func TestFormatEvidenceCapsText(t *testing.T) {
	long := strings.Repeat("z", 2000)
	got := FormatEvidence([]Citation{{Title: "T", PageStart: 1, Text: long}}, 1200)
	assert.Contains(t, got, strings.Repeat("z", 1200))
	assert.NotContains(t, got, strings.Repeat("z", 1201))
}

func TestFormatEvidenceNoMetadata(t *testing.T) {
	got := FormatEvidence([]Citation{{Text: "bare text"}}, 1200)
	assert.Equal(t, "[1] source\nbare text", got)
}
