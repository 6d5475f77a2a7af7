// Package index provides options for building and persisting the vector index.
package index

import (
	"fmt"

	"github.com/kart-io/exambot/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Supported index backends.
const (
	BackendChromem = "chromem"
	BackendMilvus  = "milvus"
)

// Options 索引构建与持久化配置。
type Options struct {
	// Backend 向量存储后端（chromem 或 milvus）。
	Backend string `json:"backend" mapstructure:"backend"`

	// DataDir 源文档目录，仅在首次构建时递归读取。
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// PersistDir chromem 索引的持久化目录。
	PersistDir string `json:"persist-dir" mapstructure:"persist-dir"`

	// Collection 集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim 向量维度，all-MiniLM-L6-v2 为 384。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// ChunkSize 每个分块的 token 上限。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块重叠的 token 数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// BatchSize 每批 embedding 的分块数。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// Workers 并发 embedding 的 worker 数。
	Workers int `json:"workers" mapstructure:"workers"`

	// Compress 是否 gzip 压缩持久化文件。
	Compress bool `json:"compress" mapstructure:"compress"`

	// Rebuild 启动时丢弃已持久化的索引并重新构建。
	Rebuild bool `json:"rebuild" mapstructure:"rebuild"`

	// Watch 监听数据目录，变化时在 /api/stats 中标记索引过期。
	Watch bool `json:"watch" mapstructure:"watch"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend:      BackendChromem,
		DataDir:      "Data",
		PersistDir:   "storage",
		Collection:   "exam_materials",
		EmbeddingDim: 384,
		ChunkSize:    1024,
		ChunkOverlap: 200,
		BatchSize:    32,
		Workers:      4,
	}
}

// AddFlags adds flags for index options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "index."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Vector store backend (chromem, milvus).")
	fs.StringVar(&o.DataDir, p+"data-dir", o.DataDir, "Directory of source documents, read recursively on first run.")
	fs.StringVar(&o.PersistDir, p+"persist-dir", o.PersistDir, "Directory holding the persisted index.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum tokens per chunk.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Tokens shared by adjacent chunks.")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Chunks per embedding batch.")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Concurrent embedding workers.")
	fs.BoolVar(&o.Compress, p+"compress", o.Compress, "Gzip the persisted index files.")
	fs.BoolVar(&o.Rebuild, p+"rebuild", o.Rebuild, "Discard the persisted index and rebuild it from the data directory.")
	fs.BoolVar(&o.Watch, p+"watch", o.Watch, "Watch the data directory and report the index as stale when documents change.")
}

// Validate validates the index options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendChromem:
		if o.PersistDir == "" {
			errs = append(errs, fmt.Errorf("index.persist-dir is required for the chromem backend"))
		}
	case BackendMilvus:
	default:
		errs = append(errs, fmt.Errorf("index.backend %q is not supported", o.Backend))
	}
	if o.DataDir == "" {
		errs = append(errs, fmt.Errorf("index.data-dir is required"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("index.collection is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("index.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("index.embedding-dim must be positive"))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("index.batch-size must be positive"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("index.workers must be positive"))
	}
	return errs
}

// Complete completes the index options with defaults.
func (o *Options) Complete() error {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return nil
}
