package llm

import (
	"fmt"
	"time"
)

// 配置键，与 options 包的 ToConfigMap 保持一致。
const (
	ConfigBaseURL      = "base_url"
	ConfigAPIKey       = "api_key"
	ConfigEmbedModel   = "embed_model"
	ConfigChatModel    = "chat_model"
	ConfigTimeout      = "timeout"
	ConfigMaxRetries   = "max_retries"
	ConfigTemperature  = "temperature"
	ConfigMaxTokens    = "max_tokens"
	ConfigOrganization = "organization"
)

// StatusError 表示供应商返回了非 2xx 状态码。
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: request failed with status code %d: %s", e.Provider, e.StatusCode, e.Message)
}

// GetString reads a string value from a provider config map.
func GetString(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// GetInt reads an integer value, accepting the numeric types produced by
// options and by YAML decoding.
func GetInt(config map[string]any, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// GetFloat reads a float value.
func GetFloat(config map[string]any, key string, def float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// GetDuration reads a duration given either as time.Duration or as a string.
func GetDuration(config map[string]any, key string, def time.Duration) time.Duration {
	switch v := config[key].(type) {
	case time.Duration:
		if v > 0 {
			return v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
