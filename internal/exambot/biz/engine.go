package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/exambot/internal/exambot/metrics"
	"github.com/kart-io/exambot/internal/model"
	"github.com/kart-io/exambot/pkg/infra/tracing"
)

// Querier 回答单个问题。
type Querier interface {
	Query(ctx context.Context, question string) (*model.QueryResult, error)
}

// QueryEngine 组合缓存、检索与生成，回答单个问题。
// 除不可变依赖外无状态，可并发使用。
type QueryEngine struct {
	retriever *Retriever
	generator *Generator
	cache     *QueryCache
	metrics   *metrics.Metrics
}

// NewQueryEngine 创建查询引擎。cache 为空表示不启用缓存。
func NewQueryEngine(retriever *Retriever, generator *Generator, cache *QueryCache, m *metrics.Metrics) *QueryEngine {
	return &QueryEngine{
		retriever: retriever,
		generator: generator,
		cache:     cache,
		metrics:   m,
	}
}

// Query 执行 RAG 查询。
func (e *QueryEngine) Query(ctx context.Context, question string) (result *model.QueryResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "QueryEngine.Query",
		attribute.Int("rag.question_length", len(question)),
	)
	start := time.Now()
	outcome := metrics.ResultMiss
	defer func() {
		if err != nil {
			outcome = metrics.ResultError
		}
		span.SetAttributes(attribute.String("rag.result", outcome))
		e.metrics.RecordQuery(outcome, time.Since(start))
		tracing.End(span, err)
	}()

	// 1. 尝试从缓存获取
	if e.cache != nil {
		cached, cacheErr := e.cache.Get(ctx, question)
		if cacheErr != nil {
			logger.Warnw("cache lookup failed, querying index", "error", cacheErr.Error())
		} else if cached != nil {
			outcome = metrics.ResultHit
			return cached, nil
		}
	}

	// 2. 检索
	results, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		outcome = metrics.ResultEmpty
	}

	// 3. 生成
	resp, err := e.generator.GenerateAnswer(ctx, question, results)
	if err != nil {
		return nil, err
	}

	sources := make([]model.ChunkSource, len(results))
	for i, r := range results {
		sources[i] = model.ChunkSource{
			DocumentID:   r.DocumentID,
			DocumentName: r.DocumentName,
			Section:      r.Section,
			Content:      r.Content,
			Score:        r.Score,
		}
	}
	result = &model.QueryResult{
		Answer:  resp.Content,
		Sources: sources,
	}

	// 4. 写入缓存，空检索结果不缓存
	if e.cache != nil && len(results) > 0 {
		if err := e.cache.Set(ctx, question, result); err != nil {
			logger.Warnw("failed to cache query result", "error", err.Error())
		}
	}

	logger.Infow("query answered",
		"sources", len(sources),
		"elapsed", time.Since(start).String(),
	)
	return result, nil
}

var _ Querier = (*QueryEngine)(nil)
