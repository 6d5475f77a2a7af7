package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/pkg/llm"
)

func TestGroqProvider_RequiresAPIKey(t *testing.T) {
	_, err := llm.NewChatProvider(GroqProviderName, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestGroqProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-3.1-8b-instant", body["model"])
		assert.InDelta(t, 0.1, body["temperature"], 1e-9)
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "The femur is the thigh bone."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	p, err := llm.NewChatProvider(GroqProviderName, map[string]any{
		llm.ConfigBaseURL:    srv.URL + "/openai/v1",
		llm.ConfigAPIKey:     "gsk_test",
		llm.ConfigMaxRetries: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, GroqProviderName, p.Name())

	resp, err := p.Generate(context.Background(), "What is the femur?", "Answer briefly.")
	require.NoError(t, err)
	assert.Equal(t, "The femur is the thigh bone.", resp.Content)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
}

func TestProvider_ChatUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API Key", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{Name: GroqProviderName, BaseURL: srv.URL, APIKey: "bad", ChatModel: "m"})
	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})

	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, GroqProviderName, se.Provider)
}

func TestProvider_EmbedKeepsInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// 故意乱序返回
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{
		llm.ConfigBaseURL: srv.URL,
		llm.ConfigAPIKey:  "sk-test",
	})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestGroqProvider_NoEmbeddings(t *testing.T) {
	p := NewProviderWithConfig(DefaultGroqConfig())
	_, err := p.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}
