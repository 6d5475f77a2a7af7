package exambot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/internal/exambot/biz"
	"github.com/kart-io/exambot/internal/model"
	llmopts "github.com/kart-io/exambot/pkg/options/llm"
)

func TestResilienceOptions_ProviderRetriesDisabled(t *testing.T) {
	opts := llmopts.NewChatOptions()
	opts.MaxRetries = 2
	opts.RateLimit = 5

	config, ropts := resilienceOptions("chat", opts, nil)
	assert.Equal(t, 0, config["max_retries"])
	assert.Equal(t, "llama-3.1-8b-instant", config["chat_model"])
	assert.Len(t, ropts, 3)
	assert.Equal(t, 2, opts.MaxRetries, "options must not be mutated")
}

func TestServer_CloseReverseOrder(t *testing.T) {
	var order []string
	s := &Server{}
	for _, name := range []string{"tracer", "chromem", "redis"} {
		s.addCloser(name, func(context.Context) error {
			order = append(order, name)
			if name == "chromem" {
				return errors.New("flush failed")
			}
			return nil
		})
	}

	s.close()
	require.Equal(t, []string{"redis", "chromem", "tracer"}, order)
	assert.Empty(t, s.closers)

	s.close()
	assert.Len(t, order, 3, "close must be idempotent")
}

func TestClearStaleCache(t *testing.T) {
	tests := []struct {
		name      string
		stats     *biz.IndexStats
		wantClear bool
	}{
		{"fresh build", &biz.IndexStats{BuiltAt: time.Now()}, true},
		{"loaded from disk", &biz.IndexStats{Loaded: true}, false},
		{"nil stats", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			cache := biz.NewQueryCache(client, &biz.QueryCacheConfig{KeyPrefix: "exambot:query:"})

			ctx := context.Background()
			require.NoError(t, cache.Set(ctx, "What pumps blood?", &model.QueryResult{Answer: "The heart."}))

			clearStaleCache(ctx, cache, tt.stats)

			got, err := cache.Get(ctx, "What pumps blood?")
			require.NoError(t, err)
			if tt.wantClear {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, "The heart.", got.Answer)
			}
		})
	}
}

func TestClearStaleCache_NilCache(t *testing.T) {
	assert.NotPanics(t, func() {
		clearStaleCache(context.Background(), nil, &biz.IndexStats{BuiltAt: time.Now()})
	})
}
