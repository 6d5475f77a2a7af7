// Package router registers the exam bot routes and the middleware chain.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/exambot/internal/exambot/handler"
	"github.com/kart-io/exambot/pkg/infra/middleware"
	mwopts "github.com/kart-io/exambot/pkg/options/middleware"
	"github.com/kart-io/exambot/pkg/utils/errors"
	"github.com/kart-io/exambot/pkg/utils/response"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Chat  *handler.ChatHandler
	Stats *handler.StatsHandler
}

// New builds the gin engine.
//
// Middleware order: recovery, request ID, tracing, access log, metrics.
// reg and gatherer may be nil when metrics are disabled.
func New(opts *mwopts.Options, h *Handlers, reg prometheus.Registerer, gatherer prometheus.Gatherer) *gin.Engine {
	if opts == nil {
		opts = mwopts.NewOptions()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	probes := []string{"/healthz", "/readyz"}
	chain := []gin.HandlerFunc{
		middleware.Recovery(),
		middleware.RequestID(opts.RequestID),
		middleware.Tracing(append(probes, opts.Metrics.Path)...),
		middleware.Logger(opts.Logger),
	}

	metricsEnabled := opts.Metrics.Enabled && reg != nil && gatherer != nil
	if metricsEnabled {
		collector := middleware.NewMetricsCollector(opts.Metrics.Namespace, reg)
		chain = append(chain, middleware.Metrics(collector, append(probes, opts.Metrics.Path)...))
	}
	r.Use(chain...)

	r.NoRoute(func(c *gin.Context) { response.Fail(c, errors.ErrNotFound) })
	r.NoMethod(func(c *gin.Context) { response.Fail(c, errors.ErrMethodNotAllowed) })

	r.GET("/", handler.Index)
	r.GET("/healthz", h.Stats.Healthz)
	r.GET("/readyz", h.Stats.Readyz)

	api := r.Group("/api")
	{
		api.POST("/chat", h.Chat.Chat)
		api.GET("/stats", h.Stats.Stats)
	}

	if metricsEnabled {
		r.GET(opts.Metrics.Path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	logger.Infow("HTTP routes registered", "metrics", metricsEnabled, "metrics_path", opts.Metrics.Path)
	return r
}
