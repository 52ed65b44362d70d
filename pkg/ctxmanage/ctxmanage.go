package ctxmanage

import (
	"github.com/gin-gonic/gin"
)

// TraceIDKey is the gin context key under which middleware.Logger stores the
// request trace id.
const TraceIDKey = "trace_id"

// GetTraceIdOfRequest returns the trace id set by the logging middleware, or
// "unknown" when the middleware did not run (e.g. in tests).
func GetTraceIdOfRequest(c *gin.Context) string {
	traceId, ok := c.Value(TraceIDKey).(string)
	if !ok {
		return "unknown"
	}
	return traceId
}
