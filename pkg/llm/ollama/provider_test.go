package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/pkg/llm"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		out := embedResponse{Model: req.Model}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message:         chatMessage{Role: "assistant", Content: "echo: " + req.Messages[len(req.Messages)-1].Content},
			Done:            true,
			PromptEvalCount: 7,
			EvalCount:       3,
		})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"all-minilm:latest"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_Embed(t *testing.T) {
	srv := newTestServer(t)
	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{llm.ConfigBaseURL: srv.URL + "/"})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{2, 1}, vecs[2])

	empty, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestProvider_Generate(t *testing.T) {
	srv := newTestServer(t)
	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, ChatModel: "m", Timeout: time.Second, Temperature: 0.1})

	resp, err := p.Generate(context.Background(), "what is the femur?", "system")
	require.NoError(t, err)
	assert.Equal(t, "echo: what is the femur?", resp.Content)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, EmbedModel: "x", Timeout: time.Second})
	_, err := p.EmbedSingle(context.Background(), "a")

	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestProvider_ListModels(t *testing.T) {
	srv := newTestServer(t)
	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, Timeout: time.Second})

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"all-minilm:latest"}, models)
	assert.NoError(t, p.Ping(context.Background()))
}
