package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/exambot/internal/exambot/biz"
	"github.com/kart-io/exambot/pkg/infra/logger"
	"github.com/kart-io/exambot/pkg/utils/errors"
	"github.com/kart-io/exambot/pkg/utils/response"
)

// Providers names the configured LLM providers.
type Providers struct {
	Chat      string `json:"chat"`
	Embedding string `json:"embedding"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Index     *biz.IndexStats `json:"index"`
	Cache     map[string]any  `json:"cache"`
	Providers Providers       `json:"providers"`
}

// StatsHandler serves statistics and health probes.
type StatsHandler struct {
	index     IndexStatter
	cache     CacheStatter
	providers Providers
}

// NewStatsHandler creates a StatsHandler. cache may be nil when caching is disabled.
func NewStatsHandler(index IndexStatter, cache CacheStatter, providers Providers) *StatsHandler {
	return &StatsHandler{index: index, cache: cache, providers: providers}
}

// Stats returns index, cache and provider information.
func (h *StatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	indexStats, err := h.index.Stats(ctx)
	if err != nil {
		logger.LogError(ctx, "failed to get index stats", err)
		response.Fail(c, errors.ErrStatsUnavailable.WithCause(err))
		return
	}

	cacheStats := map[string]any{"enabled": false}
	if h.cache != nil {
		s, err := h.cache.GetStats(ctx)
		if err != nil {
			// 缓存不可用不影响索引统计
			logger.GetLogger(ctx).Warnw("failed to get cache stats", "error", err.Error())
			cacheStats = map[string]any{"enabled": true, "error": "unavailable"}
		} else {
			cacheStats = s
		}
	}

	response.OK(c, &StatsResponse{
		Index:     indexStats,
		Cache:     cacheStats,
		Providers: h.providers,
	})
}

// Healthz is the liveness probe.
func (h *StatsHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz returns 200 once the index is loaded.
func (h *StatsHandler) Readyz(c *gin.Context) {
	if !h.index.Loaded() {
		response.Fail(c, errors.ErrIndexNotReady)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
