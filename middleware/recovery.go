package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500. Streams that already
// sent their headers (SSE, upgraded websockets) are only aborted.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			id := GetTraceID(c)
			log.Error("handler panicked",
				zap.Any("recover", r),
				zap.String("trace_id", id),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.ByteString("stack", debug.Stack()))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal error",
				"trace_id": id,
			})
		}()
		c.Next()
	}
}
