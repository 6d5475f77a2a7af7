// Package huggingface 提供 HuggingFace Inference API 的 Embedding 实现。
// 默认模型 sentence-transformers/all-MiniLM-L6-v2，维度 384。
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/exambot/pkg/llm"
	"github.com/kart-io/exambot/pkg/utils/httpclient"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token，公开模型可不填。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型 ID。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`

	// WaitForModel 如果模型正在加载，是否等待。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		EmbedModel:   "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:      120 * time.Second,
		MaxRetries:   3,
		WaitForModel: true,
	}
}

// Provider HuggingFace Embedding 供应商。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.GetString(configMap, llm.ConfigBaseURL, cfg.BaseURL)
	cfg.APIKey = llm.GetString(configMap, llm.ConfigAPIKey, cfg.APIKey)
	cfg.EmbedModel = llm.GetString(configMap, llm.ConfigEmbedModel, cfg.EmbedModel)
	cfg.Timeout = llm.GetDuration(configMap, llm.ConfigTimeout, cfg.Timeout)
	cfg.MaxRetries = llm.GetInt(configMap, llm.ConfigMaxRetries, cfg.MaxRetries)
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
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

type embeddingRequest struct {
	Inputs  []string          `json:"inputs"`
	Options *embeddingOptions `json:"options,omitempty"`
}

type embeddingOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		reqBody.Options = &embeddingOptions{WaitForModel: true}
	}

	headers := map[string]string{}
	if p.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.config.APIKey
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	var out [][]float32
	if err := p.client.PostJSON(ctx, url, headers, reqBody, &out); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return nil, &llm.StatusError{Provider: ProviderName, StatusCode: se.StatusCode, Message: se.Body}
		}
		return nil, fmt.Errorf("huggingface: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("huggingface: expected %d embeddings, got %d", len(texts), len(out))
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
