package store

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/pkg/component/milvus"
)

type fakeMilvusRow struct {
	id        int64
	embedding []float32
	meta      map[string]any
}

// fakeMilvus 内存版 Milvus 客户端，按点积排序返回结果。
type fakeMilvus struct {
	schemas map[string]*milvus.CollectionSchema
	rows    map[string][]fakeMilvusRow
	nextID  int64

	searchErr    error
	searchFields []string
	closed       bool
}

func newFakeMilvus() *fakeMilvus {
	return &fakeMilvus{
		schemas: make(map[string]*milvus.CollectionSchema),
		rows:    make(map[string][]fakeMilvusRow),
	}
}

func (f *fakeMilvus) HasCollection(_ context.Context, name string) (bool, error) {
	_, ok := f.schemas[name]
	return ok, nil
}

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *milvus.CollectionSchema) error {
	if _, ok := f.schemas[schema.Name]; !ok {
		f.schemas[schema.Name] = schema
	}
	return nil
}

func (f *fakeMilvus) Insert(_ context.Context, collection string, data *milvus.InsertData) ([]int64, error) {
	if _, ok := f.schemas[collection]; !ok {
		return nil, errors.New("collection not found")
	}
	ids := make([]int64, len(data.Embeddings))
	for i, emb := range data.Embeddings {
		f.nextID++
		meta := make(map[string]any, len(data.Metadata))
		for field, values := range data.Metadata {
			meta[field] = values[i]
		}
		f.rows[collection] = append(f.rows[collection], fakeMilvusRow{id: f.nextID, embedding: emb, meta: meta})
		ids[i] = f.nextID
	}
	return ids, nil
}

func (f *fakeMilvus) Search(_ context.Context, collection string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.searchFields = outputFields

	var out []milvus.SearchResult
	for _, row := range f.rows[collection] {
		var score float32
		for i := range vector {
			score += vector[i] * row.embedding[i]
		}
		out = append(out, milvus.SearchResult{ID: row.id, Score: score, Metadata: row.meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeMilvus) DropCollection(_ context.Context, collection string) error {
	delete(f.schemas, collection)
	delete(f.rows, collection)
	return nil
}

func (f *fakeMilvus) Count(_ context.Context, collection string) (int64, error) {
	return int64(len(f.rows[collection])), nil
}

func (f *fakeMilvus) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestMilvusStore_BuildAndSearch(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	s := newMilvusStore(fake)
	assert.Equal(t, BackendMilvus, s.Name())

	ok, err := s.Exists(ctx, testCollection)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Load(ctx, testCollection), ErrCollectionNotFound)

	require.NoError(t, s.CreateCollection(ctx, &CollectionConfig{Name: testCollection, Dimension: 3}))
	schema := fake.schemas[testCollection]
	require.NotNil(t, schema)
	assert.Equal(t, 3, schema.Dimension)
	var fields []string
	for _, f := range schema.MetaFields {
		fields = append(fields, f.Name)
	}
	assert.Equal(t, milvusOutputFields, fields)

	// 集合为空时不可加载
	ok, err = s.Exists(ctx, testCollection)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := s.Insert(ctx, testCollection, testChunks())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)
	require.NoError(t, s.Commit(ctx, testCollection))

	ok, err = s.Exists(ctx, testCollection)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Load(ctx, testCollection))

	n, err := s.GetStats(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	results, err := s.Search(ctx, testCollection, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, milvusOutputFields, fake.searchFields)
	assert.Equal(t, &SearchResult{
		ID:           "c1",
		DocumentID:   "d1",
		DocumentName: "skeleton.md",
		Section:      "Bones",
		Content:      "The femur is the longest bone.",
		Score:        1,
	}, results[0])
	assert.Equal(t, "c2", results[1].ID)
}

func TestMilvusStore_InsertEmpty(t *testing.T) {
	s := newMilvusStore(newFakeMilvus())

	ids, err := s.Insert(context.Background(), testCollection, nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestMilvusStore_InsertError(t *testing.T) {
	s := newMilvusStore(newFakeMilvus())

	_, err := s.Insert(context.Background(), "missing", testChunks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert into milvus")
}

func TestMilvusStore_SearchError(t *testing.T) {
	fake := newFakeMilvus()
	fake.searchErr = errors.New("connection refused")
	s := newMilvusStore(fake)

	_, err := s.Search(context.Background(), testCollection, []float32{1, 0, 0}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.searchErr)
}

func TestMilvusStore_AbortDropsCollection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeMilvus()
	s := newMilvusStore(fake)
	require.NoError(t, s.CreateCollection(ctx, &CollectionConfig{Name: testCollection, Dimension: 3}))
	_, err := s.Insert(ctx, testCollection, testChunks())
	require.NoError(t, err)

	require.NoError(t, s.Abort(ctx, testCollection))
	ok, err := s.Exists(ctx, testCollection)
	require.NoError(t, err)
	assert.False(t, ok)

	// 删除不存在的集合不报错
	require.NoError(t, s.Drop(ctx, testCollection))

	require.NoError(t, s.Close(ctx))
	assert.True(t, fake.closed)
}

func TestMetaString(t *testing.T) {
	m := map[string]any{"section": "Bones", "count": 3}
	assert.Equal(t, "Bones", metaString(m, "section"))
	assert.Empty(t, metaString(m, "count"))
	assert.Empty(t, metaString(m, "missing"))
}
