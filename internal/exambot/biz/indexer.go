package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/exambot/internal/exambot/metrics"
	"github.com/kart-io/exambot/internal/exambot/store"
	"github.com/kart-io/exambot/pkg/infra/pool"
	"github.com/kart-io/exambot/pkg/infra/tracing"
	"github.com/kart-io/exambot/pkg/llm"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// Collection 集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
	// ChunkSize 每块 token 上限。
	ChunkSize int
	// ChunkOverlap 块重叠 token 数。
	ChunkOverlap int
	// BatchSize 每批 embedding 的分块数。
	BatchSize int
	// Workers 并发 embedding 的 worker 数。
	Workers int
}

// IndexStats 索引统计信息。
type IndexStats struct {
	Backend    string    `json:"backend"`
	Collection string    `json:"collection"`
	PersistDir string    `json:"persist_dir,omitempty"`
	Documents  int       `json:"documents"`
	Chunks     int64     `json:"chunks"`
	Loaded     bool      `json:"loaded"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
	// Stale 数据目录在索引构建后发生了变化，需要 --index.rebuild。
	Stale bool `json:"stale"`
}

// persistDirer 由基于目录持久化的存储实现。
type persistDirer interface {
	PersistDir() string
}

// IndexManager 负责加载已持久化的索引，或从数据目录构建新索引。
type IndexManager struct {
	store         store.VectorStore
	reader        DocumentReader
	splitter      *SentenceSplitter
	embedProvider llm.EmbeddingProvider
	config        *IndexerConfig
	metrics       *metrics.Metrics

	mu      sync.RWMutex
	stats   IndexStats
	loaded  atomic.Bool
	buildMu sync.Mutex
}

// NewIndexManager 创建索引管理器。splitter 为空时按配置创建。
func NewIndexManager(
	vectorStore store.VectorStore,
	reader DocumentReader,
	splitter *SentenceSplitter,
	embedProvider llm.EmbeddingProvider,
	config *IndexerConfig,
	m *metrics.Metrics,
) *IndexManager {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if splitter == nil {
		splitter = NewSentenceSplitter(config.ChunkSize, config.ChunkOverlap, nil)
	}

	stats := IndexStats{
		Backend:    vectorStore.Name(),
		Collection: config.Collection,
	}
	if pd, ok := vectorStore.(persistDirer); ok {
		stats.PersistDir = pd.PersistDir()
	}

	return &IndexManager{
		store:         vectorStore,
		reader:        reader,
		splitter:      splitter,
		embedProvider: embedProvider,
		config:        config,
		metrics:       m,
		stats:         stats,
	}
}

// Loaded 报告索引是否已可检索。
func (m *IndexManager) Loaded() bool {
	return m.loaded.Load()
}

// LoadOrBuild 存在持久化索引时直接加载（不读取数据目录），否则构建并持久化。
func (m *IndexManager) LoadOrBuild(ctx context.Context) (*IndexStats, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	exists, err := m.store.Exists(ctx, m.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check persisted index: %w", err)
	}
	if exists {
		return m.load(ctx)
	}
	return m.build(ctx)
}

// Rebuild 删除已持久化的索引并重新构建。
func (m *IndexManager) Rebuild(ctx context.Context) (*IndexStats, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	logger.Infow("rebuilding index", "backend", m.store.Name(), "collection", m.config.Collection)
	m.loaded.Store(false)
	if err := m.store.Drop(ctx, m.config.Collection); err != nil {
		return nil, fmt.Errorf("failed to drop persisted index: %w", err)
	}
	return m.build(ctx)
}

// MarkStale 记录数据目录已变化。索引不会自动重建。
func (m *IndexManager) MarkStale(path string) {
	m.mu.Lock()
	already := m.stats.Stale
	m.stats.Stale = true
	m.mu.Unlock()

	if !already {
		logger.Warnw("source documents changed, restart with --index.rebuild to re-index",
			"path", path,
			"collection", m.config.Collection,
		)
	}
}

// Stats 返回当前索引统计信息。
func (m *IndexManager) Stats(ctx context.Context) (*IndexStats, error) {
	m.mu.RLock()
	stats := m.stats
	m.mu.RUnlock()

	stats.Loaded = m.loaded.Load()
	if !stats.Loaded {
		return &stats, nil
	}
	count, err := m.store.GetStats(ctx, m.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get index stats: %w", err)
	}
	stats.Chunks = count
	return &stats, nil
}

func (m *IndexManager) load(ctx context.Context) (*IndexStats, error) {
	logger.Infow("loading persisted index", "backend", m.store.Name(), "collection", m.config.Collection)
	if err := m.store.Load(ctx, m.config.Collection); err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	count, err := m.store.GetStats(ctx, m.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count loaded index: %w", err)
	}

	m.mu.Lock()
	m.stats.Chunks = count
	m.stats.Documents = 0
	m.stats.BuiltAt = time.Time{}
	stats := m.stats
	m.mu.Unlock()

	m.loaded.Store(true)
	m.metrics.SetIndexed(-1, count)
	logger.Infow("index loaded", "chunks", count)

	stats.Loaded = true
	return &stats, nil
}

func (m *IndexManager) build(ctx context.Context) (stats *IndexStats, err error) {
	ctx, span := tracing.StartSpan(ctx, "IndexManager.build",
		attribute.String("index.backend", m.store.Name()),
		attribute.String("index.collection", m.config.Collection),
	)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	logger.Infow("no persisted index found, building", "backend", m.store.Name(), "collection", m.config.Collection)

	docs, err := m.reader.Read(ctx)
	if err != nil {
		return nil, err
	}

	var chunks []*store.Chunk
	for _, doc := range docs {
		chunks = append(chunks, m.splitter.SplitDocument(doc)...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %d documents produced no text chunks", ErrNoDocuments, len(docs))
	}
	logger.Infow("documents split", "documents", len(docs), "chunks", len(chunks))
	span.SetAttributes(attribute.Int("index.documents", len(docs)), attribute.Int("index.chunks", len(chunks)))

	if err := m.store.CreateCollection(ctx, &store.CollectionConfig{
		Name:        m.config.Collection,
		Description: "Anatomy & Physiology exam materials",
		Dimension:   m.config.EmbeddingDim,
	}); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	if err := m.embedAndInsert(ctx, chunks); err != nil {
		m.abort(err)
		return nil, err
	}

	if err := m.store.Commit(ctx, m.config.Collection); err != nil {
		m.abort(err)
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	elapsed := time.Since(start)
	m.mu.Lock()
	m.stats.Documents = len(docs)
	m.stats.Chunks = int64(len(chunks))
	m.stats.BuiltAt = time.Now()
	m.stats.Stale = false
	result := m.stats
	m.mu.Unlock()

	m.loaded.Store(true)
	m.metrics.SetIndexed(len(docs), int64(len(chunks)))
	m.metrics.RecordIndexBuild(elapsed)
	logger.Infow("index built and persisted",
		"documents", len(docs),
		"chunks", len(chunks),
		"elapsed", elapsed.String(),
	)

	result.Loaded = true
	return &result, nil
}

// abort 丢弃未提交的构建结果，使下次启动重新构建。
func (m *IndexManager) abort(cause error) {
	// 构建 ctx 可能已取消，这里使用独立的 ctx
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.store.Abort(ctx, m.config.Collection); err != nil {
		logger.Warnw("failed to abort index build", "error", err.Error(), "cause", cause.Error())
	}
}

// embedAndInsert 按批生成 embedding 并写入存储，批次在 worker 池中并发执行。
func (m *IndexManager) embedAndInsert(ctx context.Context, chunks []*store.Chunk) error {
	batches := (len(chunks) + m.config.BatchSize - 1) / m.config.BatchSize

	p, err := pool.NewPool("embedding", &pool.Config{
		Capacity:       m.config.Workers,
		ExpiryDuration: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding pool: %w", err)
	}
	defer p.Release()

	var done atomic.Int64
	err = p.Run(ctx, batches, func(ctx context.Context, i int) error {
		lo := i * m.config.BatchSize
		hi := min(lo+m.config.BatchSize, len(chunks))
		batch := chunks[lo:hi]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}
		embeddings, err := m.embedProvider.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch %d/%d: %w", i+1, batches, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding batch %d/%d: got %d vectors for %d chunks", i+1, batches, len(embeddings), len(batch))
		}
		for j, c := range batch {
			if m.config.EmbeddingDim > 0 && len(embeddings[j]) != m.config.EmbeddingDim {
				return fmt.Errorf("embedding dimension mismatch: got %d, index.embedding-dim is %d", len(embeddings[j]), m.config.EmbeddingDim)
			}
			c.Embedding = embeddings[j]
		}

		if _, err := m.store.Insert(ctx, m.config.Collection, batch); err != nil {
			return fmt.Errorf("failed to insert batch %d/%d: %w", i+1, batches, err)
		}

		n := done.Add(1)
		logger.Infow("embedded batch", "batch", n, "total", batches, "chunks", len(batch))
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("index build interrupted: %w", err)
		}
		return err
	}
	return nil
}
