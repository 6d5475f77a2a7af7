package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/exambot/pkg/infra/logger"
	mwopts "github.com/kart-io/exambot/pkg/options/middleware"
)

// Logger 输出结构化访问日志。5xx 记为 error，4xx 记为 warn。
func Logger(opts *mwopts.LoggerOptions) gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewLoggerOptions()
	}

	return func(c *gin.Context) {
		if opts.ShouldSkip(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, "errors", errs.String())
		}

		log := logger.GetLogger(c.Request.Context())
		switch {
		case status >= 500:
			log.Errorw("HTTP request", fields...)
		case status >= 400:
			log.Warnw("HTTP request", fields...)
		default:
			log.Infow("HTTP request", fields...)
		}
	}
}
