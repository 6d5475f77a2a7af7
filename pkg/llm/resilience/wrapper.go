package resilience

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/kart-io/exambot/pkg/llm"
)

// Option 配置韧性包装器。
type Option func(*policy)

type policy struct {
	retry   *RetryConfig
	cb      *CircuitBreaker
	limiter *rate.Limiter
}

// WithRetry 设置重试配置。
func WithRetry(cfg *RetryConfig) Option {
	return func(p *policy) { p.retry = cfg }
}

// WithCircuitBreaker 设置熔断器配置。
func WithCircuitBreaker(cfg *CircuitBreakerConfig) Option {
	return func(p *policy) { p.cb = NewCircuitBreaker(cfg) }
}

// WithRateLimit 设置每秒请求数上限，<= 0 表示不限流。
func WithRateLimit(rps float64) Option {
	return func(p *policy) { p.limiter = NewLimiter(rps) }
}

func newPolicy(name string, opts ...Option) *policy {
	p := &policy{retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(p)
	}
	if p.cb == nil {
		cfg := DefaultCircuitBreakerConfig()
		cfg.Name = name
		p.cb = NewCircuitBreaker(cfg)
	}
	return p
}

func (p *policy) do(ctx context.Context, fn func() error) error {
	return Execute(ctx, p.retry, p.cb, p.limiter, fn)
}

// ResilientEmbeddingProvider 带韧性功能的 Embedding Provider 包装器。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	policy   *policy
}

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding Provider。
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, opts ...Option) *ResilientEmbeddingProvider {
	return &ResilientEmbeddingProvider{
		provider: provider,
		policy:   newPolicy(provider.Name()+"-embedding", opts...),
	}
}

// Embed 为多个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := r.policy.do(ctx, func() error {
		var err error
		result, err = r.provider.Embed(ctx, texts)
		return err
	})
	return result, err
}

// EmbedSingle 为单个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := r.policy.do(ctx, func() error {
		var err error
		result, err = r.provider.EmbedSingle(ctx, text)
		return err
	})
	return result, err
}

// Name 返回被包装供应商的名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name()
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.policy.cb
}

// ResilientChatProvider 带韧性功能的 Chat Provider 包装器。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	policy   *policy
}

// NewResilientChatProvider 创建带韧性功能的 Chat Provider。
func NewResilientChatProvider(provider llm.ChatProvider, opts ...Option) *ResilientChatProvider {
	return &ResilientChatProvider{
		provider: provider,
		policy:   newPolicy(provider.Name()+"-chat", opts...),
	}
}

// Chat 进行多轮对话（带重试和熔断）。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	var result *llm.GenerateResponse
	err := r.policy.do(ctx, func() error {
		var err error
		result, err = r.provider.Chat(ctx, messages)
		return err
	})
	return result, err
}

// Generate 根据提示生成文本（带重试和熔断）。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	var result *llm.GenerateResponse
	err := r.policy.do(ctx, func() error {
		var err error
		result, err = r.provider.Generate(ctx, prompt, systemPrompt)
		return err
	})
	return result, err
}

// Name 返回被包装供应商的名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name()
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.policy.cb
}
