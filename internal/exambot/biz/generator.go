package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/exambot/internal/exambot/metrics"
	"github.com/kart-io/exambot/internal/exambot/store"
	"github.com/kart-io/exambot/pkg/infra/tracing"
	"github.com/kart-io/exambot/pkg/llm"
)

// NoContextAnswer 检索结果为空时的固定回答，此时不调用 LLM。
const NoContextAnswer = "I couldn't find any relevant information in the indexed materials."

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// PromptTemplate 提示词模板，包含 {{context}} 与 {{question}} 占位符。
	PromptTemplate string
	// SystemPrompt 可选的系统提示词。
	SystemPrompt string
}

// Generator 负责答案生成。
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
	metrics      *metrics.Metrics
}

// NewGenerator 创建生成器实例。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig, m *metrics.Metrics) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
		metrics:      m,
	}
}

// BuildPrompt 用检索结果填充提示词模板。
func (g *Generator) BuildPrompt(question string, results []*store.SearchResult) string {
	var b strings.Builder
	for i, result := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] From %s - %s:\n%s", i+1, result.DocumentName, result.Section, result.Content)
	}

	// 单次替换，检索内容中出现的占位符不会被再次展开
	r := strings.NewReplacer("{{context}}", b.String(), "{{question}}", question)
	return r.Replace(g.config.PromptTemplate)
}

// GenerateAnswer 根据检索结果生成答案。
func (g *Generator) GenerateAnswer(ctx context.Context, question string, results []*store.SearchResult) (resp *llm.GenerateResponse, err error) {
	if len(results) == 0 {
		return &llm.GenerateResponse{Content: NoContextAnswer}, nil
	}

	ctx, span := tracing.StartSpan(ctx, "Generator.GenerateAnswer")
	defer func() { tracing.End(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before generation: %w", err)
	}

	prompt := g.BuildPrompt(question, results)
	provider := g.chatProvider.Name()

	start := time.Now()
	resp, err = g.chatProvider.Generate(ctx, prompt, g.config.SystemPrompt)
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.RecordLLMCall(provider, elapsed, 0, 0, err)
		logger.Errorw("LLM generation failed", "provider", provider, "error", err.Error())
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	g.metrics.RecordLLMCall(provider, elapsed, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil)
	logger.Infow("answer generated",
		"provider", provider,
		"length", len(resp.Content),
		"total_tokens", resp.Usage.TotalTokens,
		"elapsed", elapsed.String(),
	)
	return resp, nil
}
