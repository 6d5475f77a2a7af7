package huggingface

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

func TestProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Options)
		assert.True(t, req.Options.WaitForModel)

		out := make([][]float32, len(req.Inputs))
		for i := range out {
			out[i] = []float32{0.5, float32(i)}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{
		llm.ConfigBaseURL: srv.URL,
		llm.ConfigAPIKey:  "hf_test",
	})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"heart", "lung"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0}, {0.5, 1}}, vecs)
}

func TestProvider_EmbedNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[[1,2,3]]`))
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, EmbedModel: "m"})
	vec, err := p.EmbedSingle(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestProvider_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, EmbedModel: "m"})
	_, err := p.Embed(context.Background(), []string{"x"})

	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}
