package middleware

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-ID"
)

// Client supplied IDs end up in logs, so only short printable tokens are kept.
var traceIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type traceCtxKey struct{}

// WithTraceID returns a copy of ctx carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, id)
}

// TraceIDFrom returns the trace ID stored by WithTraceID, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceCtxKey{}).(string)
	return id
}

// NewTraceID returns a fresh random trace ID.
func NewTraceID() string { return uuid.NewString() }

// TraceID tags every request with a trace ID, reusing a well-formed
// X-Trace-ID sent by the client. The ID is echoed in the response header and
// stored both on the gin context and on the request context, so code that
// only sees a context.Context (world commands, stores) can log it.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TraceIDHeader)
		if !traceIDRe.MatchString(id) {
			id = NewTraceID()
		}
		c.Set(TraceIDKey, id)
		c.Request = c.Request.WithContext(WithTraceID(c.Request.Context(), id))
		c.Header(TraceIDHeader, id)
		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the Gin context.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
