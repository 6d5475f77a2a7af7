package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/exambot/internal/exambot/metrics"
	"github.com/kart-io/exambot/internal/exambot/store"
	"github.com/kart-io/exambot/pkg/infra/tracing"
	"github.com/kart-io/exambot/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 返回的结果数量。
	TopK int
	// MinScore 低于该相似度的结果被丢弃，0 表示全部保留。
	MinScore float32
	// Collection 集合名称。
	Collection string
}

// Retriever 负责向量检索。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
	metrics       *metrics.Metrics
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig, m *metrics.Metrics) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 2
	}
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		config:        config,
		metrics:       m,
	}
}

// Retrieve 对问题做 embedding 并返回最相关的文档块，按相似度降序。
func (r *Retriever) Retrieve(ctx context.Context, question string) (results []*store.SearchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "Retriever.Retrieve", attribute.Int("rag.top_k", r.config.TopK))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	found, err := r.store.Search(ctx, r.config.Collection, embedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results = make([]*store.SearchResult, 0, len(found))
	for _, res := range found {
		if res.Score < r.config.MinScore {
			continue
		}
		results = append(results, res)
	}

	r.metrics.RecordRetrieval(time.Since(start))
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	logger.Debugw("retrieved passages", "found", len(found), "kept", len(results))
	return results, nil
}
