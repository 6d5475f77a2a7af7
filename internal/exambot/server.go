package exambot

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/kart-io/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kart-io/exambot/internal/exambot/biz"
	"github.com/kart-io/exambot/internal/exambot/handler"
	"github.com/kart-io/exambot/internal/exambot/metrics"
	"github.com/kart-io/exambot/internal/exambot/router"
	"github.com/kart-io/exambot/internal/exambot/store"
	"github.com/kart-io/exambot/pkg/component/milvus"
	"github.com/kart-io/exambot/pkg/infra/tracing"
	"github.com/kart-io/exambot/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/exambot/pkg/llm/huggingface"
	_ "github.com/kart-io/exambot/pkg/llm/ollama"
	_ "github.com/kart-io/exambot/pkg/llm/openai"
	"github.com/kart-io/exambot/pkg/llm/resilience"
	indexopts "github.com/kart-io/exambot/pkg/options/index"
	llmopts "github.com/kart-io/exambot/pkg/options/llm"
)

// Server represents the exam bot server.
type Server struct {
	cfg        *Config
	httpServer *http.Server
	index      *biz.IndexManager
	// closers 按获取顺序保存，关闭时倒序执行。
	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// NewServer initializes every component and loads or builds the index.
// On failure the resources acquired so far are released.
func (cfg *Config) NewServer(ctx context.Context) (srv *Server, err error) {
	printBanner(cfg)

	// 1. 初始化日志
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting exam bot...", "version", version.Get().GitVersion)

	s := &Server{cfg: cfg}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	// 2. 初始化 tracing
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.addCloser("tracer", tp.Shutdown)
	logger.Infow("Tracing initialized", "enabled", tp.Enabled())

	// 3. 初始化指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.HTTPOptions.Middleware.Metrics.Namespace, reg)

	// 4. 初始化 LLM 供应商
	embedProvider, err := newEmbeddingProvider(cfg.EmbeddingOptions, m)
	if err != nil {
		return nil, err
	}
	chatProvider, err := newChatProvider(cfg.ChatOptions, m)
	if err != nil {
		return nil, err
	}

	// 5. 初始化向量存储
	vectorStore, err := s.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}

	// 6. 初始化 Redis 查询缓存
	queryCache := s.newQueryCache(ctx)

	// 7. 加载或构建索引
	s.index = biz.NewIndexManager(
		vectorStore,
		biz.NewDirectoryReader(cfg.IndexOptions.DataDir, cfg.IndexOptions.Workers),
		nil,
		embedProvider,
		&biz.IndexerConfig{
			Collection:   cfg.IndexOptions.Collection,
			EmbeddingDim: cfg.IndexOptions.EmbeddingDim,
			ChunkSize:    cfg.IndexOptions.ChunkSize,
			ChunkOverlap: cfg.IndexOptions.ChunkOverlap,
			BatchSize:    cfg.IndexOptions.BatchSize,
			Workers:      cfg.IndexOptions.Workers,
		},
		m,
	)
	var stats *biz.IndexStats
	if cfg.IndexOptions.Rebuild {
		logger.Warnw("Rebuilding index", "collection", cfg.IndexOptions.Collection)
		stats, err = s.index.Rebuild(ctx)
	} else {
		stats, err = s.index.LoadOrBuild(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare index: %w", err)
	}
	logger.Infow("Index ready",
		"backend", stats.Backend,
		"collection", stats.Collection,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
	)
	clearStaleCache(ctx, queryCache, stats)

	if cfg.IndexOptions.Watch {
		watcher, werr := biz.NewDataWatcher(cfg.IndexOptions.DataDir, s.index)
		if werr != nil {
			logger.Warnw("data directory watch disabled", "dir", cfg.IndexOptions.DataDir, "error", werr.Error())
		} else {
			watcher.Start(ctx)
			s.addCloser("watcher", watcher.Close)
		}
	}

	// 8. 初始化 Biz 层
	retriever := biz.NewRetriever(vectorStore, embedProvider, &biz.RetrieverConfig{
		TopK:       cfg.RAGOptions.TopK,
		MinScore:   float32(cfg.RAGOptions.MinScore),
		Collection: cfg.IndexOptions.Collection,
	}, m)
	generator := biz.NewGenerator(chatProvider, &biz.GeneratorConfig{
		PromptTemplate: cfg.RAGOptions.PromptTemplate,
	}, m)
	engine := biz.NewQueryEngine(retriever, generator, queryCache, m)

	// 9. 初始化 Handler 层与路由
	var cacheStatter handler.CacheStatter
	if queryCache != nil {
		cacheStatter = queryCache
	}
	gin.SetMode(cfg.HTTPOptions.Mode)
	engineRouter := router.New(cfg.HTTPOptions.Middleware, &router.Handlers{
		Chat: handler.NewChatHandler(
			biz.NewChatSession(engine),
			cfg.RAGOptions.MaxQuestionLength,
			cfg.RAGOptions.QueryTimeout,
		),
		Stats: handler.NewStatsHandler(s.index, cacheStatter, handler.Providers{
			Chat:      cfg.ChatOptions.Provider,
			Embedding: cfg.EmbeddingOptions.Provider,
		}),
	}, reg, reg)

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engineRouter,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Exam bot is ready")
	return s, nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server down within
// http.shutdown-timeout and releases every resource.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPOptions.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) addCloser(name string, fn func(ctx context.Context) error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// close 倒序释放资源：存储、Redis、tracer。
func (s *Server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Warnw("failed to close resource", "resource", c.name, "error", err.Error())
		}
	}
	s.closers = nil
}

func (s *Server) newVectorStore(ctx context.Context) (store.VectorStore, error) {
	opts := s.cfg.IndexOptions
	switch opts.Backend {
	case indexopts.BackendMilvus:
		client, err := milvus.New(ctx, s.cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		vs := store.NewMilvusStore(client)
		s.addCloser("milvus", vs.Close)
		logger.Infow("Vector store initialized", "backend", "milvus", "address", s.cfg.MilvusOptions.Address)
		return vs, nil
	default:
		vs := store.NewChromemStore(opts.PersistDir, opts.Compress)
		s.addCloser("chromem", vs.Close)
		logger.Infow("Vector store initialized", "backend", "chromem", "persist_dir", opts.PersistDir)
		return vs, nil
	}
}

// newQueryCache 返回 nil 表示缓存未启用或 Redis 不可用。
func (s *Server) newQueryCache(ctx context.Context) *biz.QueryCache {
	opts := s.cfg.CacheOptions
	if !opts.Enabled {
		logger.Info("Cache is disabled")
		return nil
	}

	client := opts.Redis.NewClient()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled",
			"addr", opts.Redis.Addr(),
			"error", err.Error(),
		)
		_ = client.Close()
		return nil
	}
	s.addCloser("redis", func(context.Context) error { return client.Close() })

	logger.Infow("Redis cache initialized", "addr", opts.Redis.Addr(), "ttl", opts.TTL.String())
	return biz.NewQueryCache(client, &biz.QueryCacheConfig{
		TTL:       opts.TTL,
		KeyPrefix: opts.KeyPrefix,
	})
}

// resilienceOptions 把供应商配置转换为重试、熔断和限流策略。
// 重试由包装器负责，因此供应商自身的重试次数置 0。
func resilienceOptions(role string, opts *llmopts.ProviderOptions, m *metrics.Metrics) (map[string]any, []resilience.Option) {
	config := opts.ToConfigMap()
	config["max_retries"] = 0

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = max(opts.MaxRetries, 0) + 1

	cb := resilience.DefaultCircuitBreakerConfig()
	cb.Name = role + ":" + opts.Provider
	cb.OnStateChange = func(_ string, open bool) {
		m.SetCircuitOpen(opts.Provider, open)
	}

	return config, []resilience.Option{
		resilience.WithRetry(retry),
		resilience.WithCircuitBreaker(cb),
		resilience.WithRateLimit(opts.RateLimit),
	}
}

// clearStaleCache 新构建的索引会使已缓存的答案失效；加载已有索引时保留缓存。
func clearStaleCache(ctx context.Context, cache *biz.QueryCache, stats *biz.IndexStats) {
	if cache == nil || stats == nil || stats.BuiltAt.IsZero() {
		return
	}
	if _, err := cache.Clear(ctx); err != nil {
		logger.Warnw("failed to clear query cache after index build", "error", err.Error())
	}
}

func newEmbeddingProvider(opts *llmopts.ProviderOptions, m *metrics.Metrics) (llm.EmbeddingProvider, error) {
	config, ropts := resilienceOptions("embedding", opts, m)
	p, err := llm.NewEmbeddingProvider(opts.Provider, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model)
	return resilience.NewResilientEmbeddingProvider(p, ropts...), nil
}

func newChatProvider(opts *llmopts.ProviderOptions, m *metrics.Metrics) (llm.ChatProvider, error) {
	config, ropts := resilienceOptions("chat", opts, m)
	p, err := llm.NewChatProvider(opts.Provider, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)
	return resilience.NewResilientChatProvider(p, ropts...), nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Index: %s (%s)\n", cfg.IndexOptions.Backend, cfg.IndexOptions.Collection)
	fmt.Printf("  HTTP: %s\n", cfg.HTTPOptions.Addr)
}
