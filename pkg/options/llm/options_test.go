package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingOptions_ProviderDefaults(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		wantURL   string
		wantModel string
	}{
		{"ollama", "ollama", "http://localhost:11434", "all-minilm"},
		{"huggingface", "huggingface", "https://api-inference.huggingface.co", "sentence-transformers/all-MiniLM-L6-v2"},
		{"openai", "openai", "https://api.openai.com/v1", "text-embedding-3-small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewEmbeddingOptions()
			opts.Provider = tt.provider
			opts.APIKey = "key"

			require.NoError(t, opts.Complete())
			assert.Equal(t, tt.wantURL, opts.BaseURL)
			assert.Equal(t, tt.wantModel, opts.Model)
			assert.Empty(t, opts.Validate())
		})
	}
}

func TestEmbeddingOptions_ExplicitValuesKept(t *testing.T) {
	opts := NewEmbeddingOptions()
	opts.Provider = "openai"
	opts.APIKey = "key"
	opts.BaseURL = "http://proxy.internal/v1"
	opts.Model = "text-embedding-3-large"

	require.NoError(t, opts.Complete())
	assert.Equal(t, "http://proxy.internal/v1", opts.BaseURL)
	assert.Equal(t, "text-embedding-3-large", opts.Model)
}

func TestChatOptions_SwitchToOpenAI(t *testing.T) {
	opts := NewChatOptions()
	opts.Provider = "openai"
	opts.APIKey = "key"

	require.NoError(t, opts.Complete())
	assert.Equal(t, "https://api.openai.com/v1", opts.BaseURL)
	assert.Equal(t, "gpt-4o-mini", opts.Model)

	// 重复 Complete 不再改动已切换的值
	require.NoError(t, opts.Complete())
	assert.Equal(t, "gpt-4o-mini", opts.Model)
}

func TestProviderOptions_CompleteReadsAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	opts := NewEmbeddingOptions()
	opts.Provider = "openai"
	require.NoError(t, opts.Complete())
	assert.Equal(t, "sk-test", opts.APIKey)
}
