// Package milvusopts configures the Milvus vector store backend, used when
// index.backend is milvus.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/exambot/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client and index configuration.
type Options struct {
	// Address host:port。
	Address  string `json:"address" mapstructure:"address"`
	Database string `json:"database" mapstructure:"database"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	// Timeout 连接超时。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// NList IVF_FLAT 索引的聚类中心数，建集合时生效。
	NList int `json:"nlist" mapstructure:"nlist"`
	// NProbe 检索时探查的聚类数，越大召回越高、越慢。
	NProbe int `json:"nprobe" mapstructure:"nprobe"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
		NList:    128,
		NProbe:   16,
	}
}

// AddFlags adds flags for Milvus options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus address (host:port), used when index.backend=milvus.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Milvus connect timeout.")
	fs.IntVar(&o.NList, p+"nlist", o.NList, "IVF_FLAT nlist used when the collection is created.")
	fs.IntVar(&o.NProbe, p+"nprobe", o.NProbe, "Clusters probed per search.")
}

// Validate validates the Milvus options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus.address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus.timeout must be positive"))
	}
	if o.NList <= 0 {
		errs = append(errs, fmt.Errorf("milvus.nlist must be positive"))
	}
	if o.NProbe <= 0 || o.NProbe > o.NList {
		errs = append(errs, fmt.Errorf("milvus.nprobe must be in [1, nlist]"))
	}
	return errs
}
