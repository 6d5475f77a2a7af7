// Package options contains flags and options for initializing the exam bot.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kart-io/exambot/internal/exambot"
	cacheopts "github.com/kart-io/exambot/pkg/options/cache"
	httpopts "github.com/kart-io/exambot/pkg/options/http"
	indexopts "github.com/kart-io/exambot/pkg/options/index"
	llmopts "github.com/kart-io/exambot/pkg/options/llm"
	logopts "github.com/kart-io/exambot/pkg/options/logger"
	milvusopts "github.com/kart-io/exambot/pkg/options/milvus"
	ragopts "github.com/kart-io/exambot/pkg/options/rag"
	tracingopts "github.com/kart-io/exambot/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server and middleware configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// IndexOptions contains document loading and vector index configuration.
	IndexOptions *indexopts.Options `json:"index" mapstructure:"index"`

	// RAGOptions contains retrieval and prompt configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// CacheOptions contains query cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// MilvusOptions is used when index.backend is milvus.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		IndexOptions:     indexopts.NewOptions(),
		RAGOptions:       ragopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.IndexOptions.AddFlags(fss.FlagSet("index"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.IndexOptions.Complete(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, prefixErrors("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, prefixErrors("chat", o.ChatOptions.Validate())...)
	errs = append(errs, o.IndexOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	if o.IndexOptions.Backend == indexopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

func prefixErrors(prefix string, errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		out = append(out, fmt.Errorf("%s: %w", prefix, err))
	}
	return out
}

// Config builds an exambot.Config based on ServerOptions.
func (o *ServerOptions) Config() (*exambot.Config, error) {
	return &exambot.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		IndexOptions:     o.IndexOptions,
		RAGOptions:       o.RAGOptions,
		CacheOptions:     o.CacheOptions,
		MilvusOptions:    o.MilvusOptions,
		TracingOptions:   o.TracingOptions,
	}, nil
}
