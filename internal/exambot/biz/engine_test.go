package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/internal/exambot/store"
	ragopts "github.com/kart-io/exambot/pkg/options/rag"
)

func heartResults() []*store.SearchResult {
	return []*store.SearchResult{
		{ID: "c1", DocumentID: "d1", DocumentName: "heart.md", Section: "Heart", Content: "The heart has four chambers.", Score: 0.91},
		{ID: "c2", DocumentID: "d2", DocumentName: "valves.md", Section: "Valves", Content: "The mitral valve has two cusps.", Score: 0.42},
	}
}

func newTestEngine(vs store.VectorStore, chat *fakeChat, cache *QueryCache, minScore float32) *QueryEngine {
	retriever := NewRetriever(vs, &fakeEmbedder{}, &RetrieverConfig{TopK: 2, MinScore: minScore, Collection: "exam_materials"}, nil)
	generator := NewGenerator(chat, &GeneratorConfig{PromptTemplate: ragopts.DefaultPromptTemplate}, nil)
	return NewQueryEngine(retriever, generator, cache, nil)
}

func TestQueryEngine_Query(t *testing.T) {
	chat := &fakeChat{answer: "Four chambers."}
	engine := newTestEngine(&stubStore{results: heartResults()}, chat, nil, 0)

	result, err := engine.Query(context.Background(), "How many chambers does the heart have?")
	require.NoError(t, err)
	assert.Equal(t, "Four chambers.", result.Answer)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "heart.md", result.Sources[0].DocumentName)
	assert.InDelta(t, 0.91, result.Sources[0].Score, 1e-6)

	require.Equal(t, 1, chat.callCount())
	prompt := chat.prompts[0]
	assert.Contains(t, prompt, "[1] From heart.md - Heart:\nThe heart has four chambers.")
	assert.Contains(t, prompt, "[2] From valves.md - Valves:\nThe mitral valve has two cusps.")
	assert.Contains(t, prompt, "Query: How many chambers does the heart have?")
	assert.NotContains(t, prompt, "{{context}}")
}

func TestQueryEngine_NoResultsSkipsLLM(t *testing.T) {
	chat := &fakeChat{answer: "should not be used"}
	engine := newTestEngine(&stubStore{}, chat, nil, 0)

	result, err := engine.Query(context.Background(), "What is the Krebs cycle?")
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Equal(t, 0, chat.callCount())
}

func TestQueryEngine_MinScoreFilters(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	engine := newTestEngine(&stubStore{results: heartResults()}, chat, nil, 0.5)

	result, err := engine.Query(context.Background(), "heart")
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "d1", result.Sources[0].DocumentID)
	assert.NotContains(t, chat.prompts[0], "valves.md")
}

func TestQueryEngine_MinScoreFiltersEverything(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	engine := newTestEngine(&stubStore{results: heartResults()}, chat, nil, 0.99)

	result, err := engine.Query(context.Background(), "heart")
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, result.Answer)
	assert.Equal(t, 0, chat.callCount())
}

func TestQueryEngine_Errors(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		retriever := NewRetriever(&stubStore{results: heartResults()}, &fakeEmbedder{err: errBoom}, &RetrieverConfig{Collection: "c"}, nil)
		engine := NewQueryEngine(retriever, NewGenerator(&fakeChat{}, &GeneratorConfig{PromptTemplate: ragopts.DefaultPromptTemplate}, nil), nil, nil)

		_, err := engine.Query(context.Background(), "q")
		require.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "failed to embed question")
	})

	t.Run("store", func(t *testing.T) {
		engine := newTestEngine(&stubStore{err: store.ErrCollectionNotFound}, &fakeChat{}, nil, 0)

		_, err := engine.Query(context.Background(), "q")
		require.ErrorIs(t, err, store.ErrCollectionNotFound)
	})

	t.Run("llm", func(t *testing.T) {
		engine := newTestEngine(&stubStore{results: heartResults()}, &fakeChat{err: errBoom}, nil, 0)

		_, err := engine.Query(context.Background(), "q")
		require.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "failed to generate answer")
	})
}

func TestQueryEngine_CacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewQueryCache(client, &QueryCacheConfig{TTL: time.Minute, KeyPrefix: "test:"})

	chat := &fakeChat{answer: "Four chambers."}
	engine := newTestEngine(&stubStore{results: heartResults()}, chat, cache, 0)
	ctx := context.Background()

	first, err := engine.Query(ctx, "heart chambers?")
	require.NoError(t, err)
	second, err := engine.Query(ctx, "heart chambers?")
	require.NoError(t, err)

	assert.Equal(t, 1, chat.callCount())
	assert.Equal(t, first.Answer, second.Answer)
	assert.Len(t, second.Sources, 2)
}

func TestQueryEngine_EmptyResultNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewQueryCache(client, &QueryCacheConfig{KeyPrefix: "test:"})

	engine := newTestEngine(&stubStore{}, &fakeChat{}, cache, 0)
	_, err := engine.Query(context.Background(), "unknown topic")
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestQueryEngine_CacheDownStillAnswers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewQueryCache(client, nil)
	mr.Close()

	chat := &fakeChat{answer: "still here"}
	engine := newTestEngine(&stubStore{results: heartResults()}, chat, cache, 0)

	result, err := engine.Query(context.Background(), "heart")
	require.NoError(t, err)
	assert.Equal(t, "still here", result.Answer)
}

func TestGenerator_BuildPromptSinglePass(t *testing.T) {
	g := NewGenerator(&fakeChat{}, &GeneratorConfig{PromptTemplate: "Context:\n{{context}}\nQ: {{question}}"}, nil)
	results := []*store.SearchResult{
		{DocumentName: "notes.md", Section: "Template", Content: "Placeholders look like {{question}} and {{context}}."},
	}

	prompt := g.BuildPrompt("What is a placeholder?", results)
	assert.Equal(t,
		"Context:\n[1] From notes.md - Template:\nPlaceholders look like {{question}} and {{context}}.\nQ: What is a placeholder?",
		prompt)
}

func TestGenerator_BuildPromptQuestionWithPlaceholder(t *testing.T) {
	g := NewGenerator(&fakeChat{}, &GeneratorConfig{PromptTemplate: "{{question}} | {{context}}"}, nil)

	prompt := g.BuildPrompt("why {{context}}?", heartResults()[:1])
	assert.Equal(t, "why {{context}}? | [1] From heart.md - Heart:\nThe heart has four chambers.", prompt)
}
