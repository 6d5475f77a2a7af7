package options

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexopts "github.com/kart-io/exambot/pkg/options/index"
)

func TestServerOptions_MissingGroqKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	os.Unsetenv("GROQ_API_KEY")

	opts := NewServerOptions()
	require.NoError(t, opts.Complete())

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY not set in environment")
}

func TestServerOptions_Defaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test")

	opts := NewServerOptions()
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	assert.Equal(t, "gsk_test", opts.ChatOptions.APIKey)
	assert.Equal(t, ":7860", opts.HTTPOptions.Addr)

	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Same(t, opts.IndexOptions, cfg.IndexOptions)
	assert.Same(t, opts.ChatOptions, cfg.ChatOptions)
}

func TestServerOptions_MilvusValidatedOnlyWhenSelected(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test")

	opts := NewServerOptions()
	opts.MilvusOptions.Address = ""
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	opts.IndexOptions.Backend = indexopts.BackendMilvus
	assert.Error(t, opts.Validate())
}

func TestServerOptions_FlagNames(t *testing.T) {
	fss := NewServerOptions().Flags()

	for section, name := range map[string]string{
		"http":      "http.addr",
		"chat":      "chat.api-key",
		"embedding": "embedding.model",
		"index":     "index.data-dir",
		"rag":       "rag.top-k",
		"cache":     "cache.ttl",
		"milvus":    "milvus.address",
		"tracing":   "tracing.enabled",
		"log":       "log.level",
	} {
		fs, ok := fss.FlagSets[section]
		require.True(t, ok, "missing flag section %s", section)
		assert.NotNil(t, fs.Lookup(name), "missing flag %s", name)
	}
}
