// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/kart-io/exambot/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// apiKeyEnv 记录需要 API key 的供应商及其对应的环境变量。
var apiKeyEnv = map[string]string{
	"groq":   "GROQ_API_KEY",
	"openai": "OPENAI_API_KEY",
}

// optionalKeyEnv 记录 API key 可选的供应商。
var optionalKeyEnv = map[string]string{
	"huggingface": "HF_TOKEN",
}

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（groq, openai, ollama, huggingface）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，为空时从供应商对应的环境变量读取。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Temperature 采样温度，仅对 chat 生效。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 单次回答的最大 token 数，0 表示由服务端决定。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// RateLimit 每秒允许的请求数，0 表示不限流。
	RateLimit float64 `json:"rate-limit" mapstructure:"rate-limit"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	role            string
	defaultProvider string
}

const (
	roleEmbedding = "embedding"
	roleChat      = "chat"
)

type providerDefault struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
}

func (d providerDefault) model(role string) string {
	if role == roleEmbedding {
		return d.EmbedModel
	}
	return d.ChatModel
}

// providerDefaults 与各供应商包的 DefaultConfig 保持一致。
var providerDefaults = map[string]providerDefault{
	"ollama":      {BaseURL: "http://localhost:11434", EmbedModel: "all-minilm", ChatModel: "llama3.1:8b"},
	"openai":      {BaseURL: "https://api.openai.com/v1", EmbedModel: "text-embedding-3-small", ChatModel: "gpt-4o-mini"},
	"groq":        {BaseURL: "https://api.groq.com/openai/v1", ChatModel: "llama-3.1-8b-instant"},
	"huggingface": {BaseURL: "https://api-inference.huggingface.co", EmbedModel: "sentence-transformers/all-MiniLM-L6-v2"},
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:        "ollama",
		BaseURL:         "http://localhost:11434",
		Timeout:         120 * time.Second,
		MaxRetries:      3,
		defaultProvider: "ollama",
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
// all-minilm 即 sentence-transformers/all-MiniLM-L6-v2，本地运行，维度 384。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "all-minilm"
	opts.role = roleEmbedding
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置（Groq 托管的 llama-3.1-8b-instant）。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "groq",
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.1-8b-instant",
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		Temperature: 0.1,

		role:            roleChat,
		defaultProvider: "groq",
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"temperature":  o.Temperature,
		"max_tokens":   o.MaxTokens,
		"organization": o.Organization,
	}
}

// APIKeyEnv returns the environment variable consulted for the provider's key.
func (o *ProviderOptions) APIKeyEnv() string {
	if env, ok := apiKeyEnv[o.Provider]; ok {
		return env
	}
	return optionalKeyEnv[o.Provider]
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
// The first prefix names the role ("chat" or "embedding").
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	if p == "" {
		p = "llm."
	}
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (groq, openai, ollama, huggingface).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key. Defaults to the provider's environment variable (GROQ_API_KEY for groq).")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens per answer, 0 for provider default.")
	fs.Float64Var(&o.RateLimit, p+"rate-limit", o.RateLimit, "Requests per second, 0 disables rate limiting.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if env, ok := apiKeyEnv[o.Provider]; ok && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s not set in environment: api-key is required for %s provider", env, o.Provider))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	}
	if o.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate-limit must not be negative"))
	}
	return errs
}

// Complete swaps in the selected provider's base URL and model when they were
// left at another provider's defaults, then fills the API key from the
// environment when it was not configured.
func (o *ProviderOptions) Complete() error {
	o.applyProviderDefaults()
	if o.APIKey == "" {
		if env := o.APIKeyEnv(); env != "" {
			o.APIKey = os.Getenv(env)
		}
	}
	return nil
}

// applyProviderDefaults 供应商被切换而 base-url/model 仍为原供应商默认值时，
// 替换为新供应商的默认值。显式配置的值保持不变。
func (o *ProviderOptions) applyProviderDefaults() {
	if o.Provider == o.defaultProvider {
		return
	}
	from, ok := providerDefaults[o.defaultProvider]
	if !ok {
		return
	}
	to, ok := providerDefaults[o.Provider]
	if !ok {
		return
	}
	if o.BaseURL == from.BaseURL {
		o.BaseURL = to.BaseURL
	}
	if o.Model == from.model(o.role) {
		o.Model = to.model(o.role)
	}
	o.defaultProvider = o.Provider
}
