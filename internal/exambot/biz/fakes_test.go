package biz

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kart-io/exambot/internal/exambot/store"
	"github.com/kart-io/exambot/internal/model"
	"github.com/kart-io/exambot/pkg/llm"
)

const testDim = 8

// fakeEmbedder 用词袋哈希生成确定性的向量。
type fakeEmbedder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func bagOfWords(text string) []float32 {
	v := make([]float32, testDim)
	v[0] = 1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?")))
		v[1+int(h.Sum32()%(testDim-1))]++
	}
	return v
}

// fakeChat 记录收到的提示词并返回固定回答。
type fakeChat struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	return f.Generate(ctx, messages[len(messages)-1].Content, "")
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{
		Content: f.answer,
		Usage:   llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// countingReader 统计 Read 调用次数。
type countingReader struct {
	inner DocumentReader
	calls atomic.Int32
}

func (r *countingReader) Read(ctx context.Context) ([]*Document, error) {
	r.calls.Add(1)
	return r.inner.Read(ctx)
}

// stubStore 返回预设检索结果的向量存储。
type stubStore struct {
	results []*store.SearchResult
	err     error
}

func (s *stubStore) Name() string { return "stub" }

func (s *stubStore) Exists(context.Context, string) (bool, error) { return true, nil }

func (s *stubStore) Load(context.Context, string) error { return nil }

func (s *stubStore) CreateCollection(context.Context, *store.CollectionConfig) error { return nil }

func (s *stubStore) Commit(context.Context, string) error { return nil }

func (s *stubStore) Abort(context.Context, string) error { return nil }

func (s *stubStore) Drop(context.Context, string) error { return nil }

func (s *stubStore) Close(context.Context) error { return nil }

func (s *stubStore) Insert(_ context.Context, _ string, chunks []*store.Chunk) ([]string, error) {
	return make([]string, len(chunks)), nil
}

func (s *stubStore) Search(_ context.Context, _ string, _ []float32, topK int) ([]*store.SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.results) {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func (s *stubStore) GetStats(context.Context, string) (int64, error) {
	return int64(len(s.results)), nil
}

// stubQuerier 记录问题并返回固定结果。
type stubQuerier struct {
	questions []string
	answer    string
	err       error
}

func (q *stubQuerier) Query(_ context.Context, question string) (*model.QueryResult, error) {
	q.questions = append(q.questions, question)
	if q.err != nil {
		return nil, q.err
	}
	return &model.QueryResult{Answer: q.answer}, nil
}

var errBoom = errors.New("boom")
