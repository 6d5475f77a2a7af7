// Package openai 提供基于 openai-go SDK 的供应商实现。
// 同时注册 "openai" 与 "groq"：Groq 暴露 OpenAI 兼容接口，只是地址和默认模型不同。
//
//	import _ "github.com/kart-io/exambot/pkg/llm/openai"
//
//	chat, err := llm.NewChatProvider("groq", map[string]any{
//	    "api_key":    os.Getenv("GROQ_API_KEY"),
//	    "chat_model": "llama-3.1-8b-instant",
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kart-io/exambot/pkg/llm"
)

const (
	// ProviderName 是 OpenAI 供应商的名称标识符
	ProviderName = "openai"
	// GroqProviderName 是 Groq 供应商的名称标识符
	GroqProviderName = "groq"
)

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
	llm.RegisterChatProvider(GroqProviderName, NewGroqProvider)
}

// Config OpenAI 兼容供应商配置。
type Config struct {
	// Name 供应商名称，用于日志和错误信息。
	Name string `json:"name" mapstructure:"name"`

	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	APIKey       string        `json:"api_key" mapstructure:"api_key"`
	EmbedModel   string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel    string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`
	Organization string        `json:"organization" mapstructure:"organization"`

	// Temperature 控制生成文本的随机性，范围 0.0-2.0。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig 返回 OpenAI 默认配置。
func DefaultConfig() *Config {
	return &Config{
		Name:       ProviderName,
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// DefaultGroqConfig 返回 Groq 默认配置。
func DefaultGroqConfig() *Config {
	return &Config{
		Name:        GroqProviderName,
		BaseURL:     "https://api.groq.com/openai/v1",
		ChatModel:   "llama-3.1-8b-instant",
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		Temperature: 0.1,
	}
}

// Provider OpenAI 兼容供应商实现。
type Provider struct {
	config *Config
	client openai.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	return newFromMap(DefaultConfig(), configMap)
}

// NewGroqProvider 从配置 map 创建 Groq Chat 供应商。
func NewGroqProvider(configMap map[string]any) (llm.ChatProvider, error) {
	return newFromMap(DefaultGroqConfig(), configMap)
}

func newFromMap(cfg *Config, configMap map[string]any) (*Provider, error) {
	cfg.BaseURL = llm.GetString(configMap, llm.ConfigBaseURL, cfg.BaseURL)
	cfg.APIKey = llm.GetString(configMap, llm.ConfigAPIKey, cfg.APIKey)
	cfg.EmbedModel = llm.GetString(configMap, llm.ConfigEmbedModel, cfg.EmbedModel)
	cfg.ChatModel = llm.GetString(configMap, llm.ConfigChatModel, cfg.ChatModel)
	cfg.Timeout = llm.GetDuration(configMap, llm.ConfigTimeout, cfg.Timeout)
	cfg.MaxRetries = llm.GetInt(configMap, llm.ConfigMaxRetries, cfg.MaxRetries)
	cfg.Organization = llm.GetString(configMap, llm.ConfigOrganization, cfg.Organization)
	cfg.Temperature = llm.GetFloat(configMap, llm.ConfigTemperature, cfg.Temperature)
	cfg.MaxTokens = llm.GetInt(configMap, llm.ConfigMaxTokens, cfg.MaxTokens)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api_key 是必需的", cfg.Name)
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = ProviderName
	}
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}

	return &Provider{
		config: cfg,
		client: openai.NewClient(opts...),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.config.Name
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if p.config.EmbedModel == "" {
		return nil, fmt.Errorf("%s: embeddings are not supported", p.config.Name)
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.config.EmbedModel),
	})
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s: expected %d embeddings, got %d", p.config.Name, len(texts), len(resp.Data))
	}

	// 按 index 回填，保证与输入顺序一致
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%s: embedding index %d out of range", p.config.Name, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.config.ChatModel),
		Messages:    toParams(messages),
		Temperature: openai.Float(p.config.Temperature),
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.config.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: 响应中没有 choices", p.config.Name)
	}

	return &llm.GenerateResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt))
}

func toParams(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// wrapError 把 SDK 的 API 错误转换为 llm.StatusError，供重试策略判断。
func (p *Provider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Provider: p.config.Name, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return fmt.Errorf("%s: %w", p.config.Name, err)
}
