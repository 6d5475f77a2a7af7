// Package exambot wires the Anatomy & Physiology exam bot: providers, vector
// store, query cache, index and the HTTP server.
package exambot

import (
	cacheopts "github.com/kart-io/exambot/pkg/options/cache"
	httpopts "github.com/kart-io/exambot/pkg/options/http"
	indexopts "github.com/kart-io/exambot/pkg/options/index"
	llmopts "github.com/kart-io/exambot/pkg/options/llm"
	logopts "github.com/kart-io/exambot/pkg/options/logger"
	milvusopts "github.com/kart-io/exambot/pkg/options/milvus"
	ragopts "github.com/kart-io/exambot/pkg/options/rag"
	tracingopts "github.com/kart-io/exambot/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "exambot"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	IndexOptions     *indexopts.Options
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	MilvusOptions    *milvusopts.Options
	TracingOptions   *tracingopts.Options
}
