// Package handler provides the HTTP handlers of the exam bot: the chat API,
// statistics, health probes and the embedded chat page.
package handler

import (
	"context"

	"github.com/kart-io/exambot/internal/exambot/biz"
	"github.com/kart-io/exambot/internal/model"
)

// Asker answers one chat message given the visible history.
type Asker interface {
	Ask(ctx context.Context, message string, history []model.Turn) (string, []model.Turn, error)
}

// IndexStatter reports the state of the vector index.
type IndexStatter interface {
	Loaded() bool
	Stats(ctx context.Context) (*biz.IndexStats, error)
}

// CacheStatter reports query cache statistics.
type CacheStatter interface {
	GetStats(ctx context.Context) (map[string]any, error)
}

var (
	_ Asker        = (*biz.ChatSession)(nil)
	_ IndexStatter = (*biz.IndexManager)(nil)
	_ CacheStatter = (*biz.QueryCache)(nil)
)
