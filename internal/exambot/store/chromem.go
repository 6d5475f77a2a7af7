package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/kart-io/logger"
	chromem "github.com/philippgille/chromem-go"
)

// BackendChromem 是 chromem 后端名称。
const BackendChromem = "chromem"

const (
	metaDocumentID   = "document_id"
	metaDocumentName = "document_name"
	metaSection      = "section"
	metaDimension    = "dimension"
)

// ChromemStore 基于 chromem-go 的嵌入式持久化向量存储。
//
// 构建时写入 persistDir 同级的临时目录，Commit 时整体重命名为 persistDir，
// 因此 persistDir 存在即代表索引完整。
type ChromemStore struct {
	persistDir string
	compress   bool

	mu       sync.RWMutex
	db       *chromem.DB
	buildDB  *chromem.DB
	buildDir string
}

// NewChromemStore 创建 chromem 存储实例，不会触碰磁盘。
func NewChromemStore(persistDir string, compress bool) *ChromemStore {
	return &ChromemStore{
		persistDir: filepath.Clean(persistDir),
		compress:   compress,
	}
}

// Name 返回后端名称。
func (s *ChromemStore) Name() string {
	return BackendChromem
}

// PersistDir 返回持久化目录。
func (s *ChromemStore) PersistDir() string {
	return s.persistDir
}

// Exists 持久化目录存在即视为索引存在。
func (s *ChromemStore) Exists(_ context.Context, _ string) (bool, error) {
	info, err := os.Stat(s.persistDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", s.persistDir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("persist path %s is not a directory", s.persistDir)
	}
	return true, nil
}

// Load 从持久化目录加载集合。
func (s *ChromemStore) Load(ctx context.Context, collection string) error {
	ok, err := s.Exists(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.persistDir)
	}

	db, err := chromem.NewPersistentDB(s.persistDir, s.compress)
	if err != nil {
		return fmt.Errorf("failed to open chromem db at %s: %w", s.persistDir, err)
	}
	if db.GetCollection(collection, nil) == nil {
		return fmt.Errorf("%w: %s in %s", ErrCollectionNotFound, collection, s.persistDir)
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	return nil
}

// CreateCollection 在临时目录中创建一个新的构建库。
func (s *ChromemStore) CreateCollection(_ context.Context, config *CollectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buildDB != nil {
		return fmt.Errorf("chromem: a build is already in progress in %s", s.buildDir)
	}

	parent := filepath.Dir(s.persistDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", parent, err)
	}
	dir, err := os.MkdirTemp(parent, filepath.Base(s.persistDir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create build dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(dir, s.compress)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to create chromem db: %w", err)
	}
	meta := map[string]string{
		"description": config.Description,
		metaDimension: strconv.Itoa(config.Dimension),
	}
	if _, err := db.CreateCollection(config.Name, meta, nil); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to create collection %s: %w", config.Name, err)
	}

	s.buildDB = db
	s.buildDir = dir
	logger.Debugw("chromem build started", "dir", dir, "collection", config.Name)
	return nil
}

// Insert 把文档块写入正在构建的集合。
func (s *ChromemStore) Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	db := s.buildDB
	s.mu.RUnlock()
	if db == nil {
		return nil, errors.New("chromem: insert called without CreateCollection")
	}
	col := db.GetCollection(collection, nil)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID: c.ID,
			Metadata: map[string]string{
				metaDocumentID:   c.DocumentID,
				metaDocumentName: c.DocumentName,
				metaSection:      c.Section,
			},
			Embedding: c.Embedding,
			Content:   c.Content,
		}
		ids[i] = c.ID
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}
	return ids, nil
}

// Commit 将构建目录原子地重命名为持久化目录，并加载它用于检索。
func (s *ChromemStore) Commit(ctx context.Context, collection string) error {
	s.mu.Lock()
	dir := s.buildDir
	if s.buildDB == nil {
		s.mu.Unlock()
		return errors.New("chromem: commit called without CreateCollection")
	}
	s.buildDB = nil
	s.buildDir = ""
	s.mu.Unlock()

	if err := os.Rename(dir, s.persistDir); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to publish index to %s: %w", s.persistDir, err)
	}
	logger.Infow("chromem index persisted", "dir", s.persistDir)
	return s.Load(ctx, collection)
}

// Abort 删除未提交的构建目录。
func (s *ChromemStore) Abort(_ context.Context, _ string) error {
	s.mu.Lock()
	dir := s.buildDir
	s.buildDB = nil
	s.buildDir = ""
	s.mu.Unlock()

	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove build dir %s: %w", dir, err)
	}
	return nil
}

// Drop 删除持久化目录。
func (s *ChromemStore) Drop(_ context.Context, _ string) error {
	s.mu.Lock()
	s.db = nil
	s.mu.Unlock()

	if err := os.RemoveAll(s.persistDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", s.persistDir, err)
	}
	return nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil, fmt.Errorf("%w: index not loaded", ErrCollectionNotFound)
	}
	col := db.GetCollection(name, nil)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

// Search 执行向量相似度搜索。
func (s *ChromemStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem 要求 nResults 不超过集合大小
	n := min(topK, col.Count())
	if n <= 0 {
		return []*SearchResult{}, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromem: %w", err)
	}

	out := make([]*SearchResult, len(results))
	for i, r := range results {
		out[i] = &SearchResult{
			ID:           r.ID,
			DocumentID:   r.Metadata[metaDocumentID],
			DocumentName: r.Metadata[metaDocumentName],
			Section:      r.Metadata[metaSection],
			Content:      r.Content,
			Score:        r.Similarity,
		}
	}
	return out, nil
}

// GetStats 返回集合中的文档块数量。
func (s *ChromemStore) GetStats(_ context.Context, collection string) (int64, error) {
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return int64(col.Count()), nil
}

// Close 清理未完成的构建。chromem 本身无需关闭。
func (s *ChromemStore) Close(ctx context.Context) error {
	return s.Abort(ctx, "")
}

var _ VectorStore = (*ChromemStore)(nil)
