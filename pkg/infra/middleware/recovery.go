package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/exambot/pkg/infra/logger"
	"github.com/kart-io/exambot/pkg/utils/errors"
	"github.com/kart-io/exambot/pkg/utils/response"
)

// Recovery 捕获 handler panic，记录堆栈并返回 500 ErrPanic。
// 堆栈只写日志，不返回给客户端。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.GetLogger(c.Request.Context()).Errorw("panic recovered",
				"panic", fmt.Sprint(r),
				"stack_trace", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Abort(c, errors.ErrPanic)
		}()
		c.Next()
	}
}
