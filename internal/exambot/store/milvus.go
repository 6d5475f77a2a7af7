package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/exambot/pkg/component/milvus"
)

// BackendMilvus 是 Milvus 后端名称。
const BackendMilvus = "milvus"

var milvusOutputFields = []string{"chunk_id", "document_id", "document_name", "section", "content"}

// milvusClient 是 MilvusStore 用到的客户端方法集，由 *milvus.Client 实现。
type milvusClient interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Insert(ctx context.Context, collectionName string, data *milvus.InsertData) ([]int64, error)
	Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	DropCollection(ctx context.Context, collectionName string) error
	Count(ctx context.Context, collectionName string) (int64, error)
	Close(ctx context.Context) error
}

var _ milvusClient = (*milvus.Client)(nil)

// MilvusStore 实现基于 Milvus 的向量存储。
// Milvus 写入即持久化，Commit 为空操作，Abort 删除集合。
type MilvusStore struct {
	client milvusClient
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return newMilvusStore(client)
}

func newMilvusStore(client milvusClient) *MilvusStore {
	return &MilvusStore{client: client}
}

// Name 返回后端名称。
func (s *MilvusStore) Name() string {
	return BackendMilvus
}

// Exists 集合存在且非空才视为可加载。
func (s *MilvusStore) Exists(ctx context.Context, collection string) (bool, error) {
	ok, err := s.client.HasCollection(ctx, collection)
	if err != nil || !ok {
		return false, err
	}
	n, err := s.client.Count(ctx, collection)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Load 确认集合存在。检索时由客户端负责加载到内存。
func (s *MilvusStore) Load(ctx context.Context, collection string) error {
	ok, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return nil
}

// CreateCollection 创建 Milvus 集合。
func (s *MilvusStore) CreateCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		MetaFields: []milvus.MetaField{
			{Name: "chunk_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "document_name", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "section", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	return s.client.CreateCollection(ctx, schema)
}

// Insert 批量插入文档块到 Milvus。
func (s *MilvusStore) Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(chunks))
	metadata := map[string][]any{
		"chunk_id":      make([]any, len(chunks)),
		"document_id":   make([]any, len(chunks)),
		"document_name": make([]any, len(chunks)),
		"section":       make([]any, len(chunks)),
		"content":       make([]any, len(chunks)),
	}
	for i, c := range chunks {
		embeddings[i] = c.Embedding
		metadata["chunk_id"][i] = c.ID
		metadata["document_id"][i] = c.DocumentID
		metadata["document_name"][i] = c.DocumentName
		metadata["section"][i] = c.Section
		metadata["content"][i] = c.Content
	}

	ids, err := s.client.Insert(ctx, collection, &milvus.InsertData{Embeddings: embeddings, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("failed to insert into milvus: %w", err)
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out, nil
}

// Commit Milvus 写入时已 flush，无需额外操作。
func (s *MilvusStore) Commit(context.Context, string) error {
	return nil
}

// Abort 删除构建失败的集合。
func (s *MilvusStore) Abort(ctx context.Context, collection string) error {
	return s.Drop(ctx, collection)
}

// Drop 删除集合。
func (s *MilvusStore) Drop(ctx context.Context, collection string) error {
	ok, err := s.client.HasCollection(ctx, collection)
	if err != nil || !ok {
		return err
	}
	return s.client.DropCollection(ctx, collection)
}

// Search 执行向量相似度搜索。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	results, err := s.client.Search(ctx, collection, embedding, topK, milvusOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	out := make([]*SearchResult, len(results))
	for i, r := range results {
		out[i] = &SearchResult{
			ID:           metaString(r.Metadata, "chunk_id"),
			DocumentID:   metaString(r.Metadata, "document_id"),
			DocumentName: metaString(r.Metadata, "document_name"),
			Section:      metaString(r.Metadata, "section"),
			Content:      metaString(r.Metadata, "content"),
			Score:        r.Score,
		}
	}
	return out, nil
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// GetStats 获取集合统计信息。
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (int64, error) {
	return s.client.Count(ctx, collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
