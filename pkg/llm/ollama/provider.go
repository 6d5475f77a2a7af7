// Package ollama 提供 Ollama LLM 供应商实现。
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/exambot/pkg/llm"
	"github.com/kart-io/exambot/pkg/utils/httpclient"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel  string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel   string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `json:"max_retries" mapstructure:"max_retries"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig 返回默认配置。all-minilm 对应 all-MiniLM-L6-v2。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:11434",
		EmbedModel:  "all-minilm",
		ChatModel:   "llama3.1:8b",
		Timeout:     120 * time.Second,
		MaxRetries:  3,
		Temperature: 0.1,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.GetString(configMap, llm.ConfigBaseURL, cfg.BaseURL)
	cfg.EmbedModel = llm.GetString(configMap, llm.ConfigEmbedModel, cfg.EmbedModel)
	cfg.ChatModel = llm.GetString(configMap, llm.ConfigChatModel, cfg.ChatModel)
	cfg.Timeout = llm.GetDuration(configMap, llm.ConfigTimeout, cfg.Timeout)
	cfg.MaxRetries = llm.GetInt(configMap, llm.ConfigMaxRetries, cfg.MaxRetries)
	cfg.Temperature = llm.GetFloat(configMap, llm.ConfigTemperature, cfg.Temperature)
	cfg.MaxTokens = llm.GetInt(configMap, llm.ConfigMaxTokens, cfg.MaxTokens)

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := p.post(ctx, "/api/embed", embedRequest{Model: p.config.EmbedModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  modelOptions  `json:"options"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	req := chatRequest{
		Model:    p.config.ChatModel,
		Messages: chatMessages,
		Options:  modelOptions{Temperature: p.config.Temperature, NumPredict: p.config.MaxTokens},
	}

	var resp chatResponse
	if err := p.post(ctx, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &llm.GenerateResponse{
		Content: resp.Message.Content,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt))
}

func (p *Provider) post(ctx context.Context, path string, body, out any) error {
	err := p.client.PostJSON(ctx, p.config.BaseURL+path, nil, body, out)
	if err == nil {
		return nil
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &llm.StatusError{Provider: ProviderName, StatusCode: se.StatusCode, Message: se.Body}
	}
	return fmt.Errorf("ollama: %w", err)
}

// Ping 检查 Ollama 服务是否可用。
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

// ListModels 列出可用模型。
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.client.DoJSON(req, &result); err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}
