// Package middleware provides the gin middleware chain of the exambot HTTP
// server: recovery, request ID, tracing, access log and Prometheus metrics.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/exambot/pkg/infra/logger"
	"github.com/kart-io/exambot/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/exambot/pkg/options/middleware"
)

const maxRequestIDLength = 128

// RequestID 读取或生成请求 ID，写入响应头、请求 context 和日志字段。
// 客户端提供的 ID 超过 128 字节或含非可见字符时重新生成。
func RequestID(opts *mwopts.RequestIDOptions) gin.HandlerFunc {
	header := common.HeaderXRequestID
	if opts != nil && opts.Header != "" {
		header = opts.Header
	}

	return func(c *gin.Context) {
		rid := c.GetHeader(header)
		if !validRequestID(rid) {
			rid = common.GenerateRequestID()
		}

		ctx := common.WithRequestID(c.Request.Context(), rid)
		ctx = logger.WithRequestID(ctx, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Header(header, rid)

		c.Next()
	}
}

func validRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if rid[i] < 0x21 || rid[i] > 0x7e {
			return false
		}
	}
	return true
}
