package store

import (
	"context"
	"errors"
)

// ErrCollectionNotFound 表示持久化索引或集合不存在。
var ErrCollectionNotFound = errors.New("collection not found")

// Chunk 表示文档块。
type Chunk struct {
	// ID 文档块 ID，由文档 ID 与序号确定性生成。
	ID string
	// DocumentID 所属文档 ID。
	DocumentID string
	// DocumentName 文档名称（相对 Data 目录的路径）。
	DocumentName string
	// Section 所属章节。
	Section string
	// Content 文档内容。
	Content string
	// Embedding 嵌入向量。
	Embedding []float32
}

// SearchResult 表示检索结果。
type SearchResult struct {
	ID           string
	DocumentID   string
	DocumentName string
	Section      string
	Content      string
	// Score 余弦相似度，越大越相关。
	Score float32
}

// CollectionConfig 集合配置。
type CollectionConfig struct {
	Name        string
	Description string
	Dimension   int
}

// VectorStore 定义向量存储接口。
//
// 构建流程为 CreateCollection -> Insert... -> Commit，失败时调用 Abort。
// 在 Commit 之前，Exists 始终返回 false，保证半成品索引不会被加载。
type VectorStore interface {
	// Name 返回后端名称。
	Name() string

	// Exists 报告是否存在可加载的持久化集合。
	Exists(ctx context.Context, collection string) (bool, error)

	// Load 打开已持久化的集合，集合不存在时返回 ErrCollectionNotFound。
	Load(ctx context.Context, collection string) error

	// CreateCollection 创建一个空集合用于构建。
	CreateCollection(ctx context.Context, config *CollectionConfig) error

	// Insert 批量插入文档块，可并发调用。
	Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error)

	// Commit 发布构建完成的集合并使其可检索。
	Commit(ctx context.Context, collection string) error

	// Abort 丢弃未提交的构建结果。
	Abort(ctx context.Context, collection string) error

	// Drop 删除已持久化的集合。
	Drop(ctx context.Context, collection string) error

	// Search 向量相似度搜索，按相似度降序返回。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// GetStats 返回集合中的文档块数量。
	GetStats(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
