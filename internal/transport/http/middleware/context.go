package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDHeader propagates trace identifiers between the frontend proxy
// and this service.
const TraceIDHeader = "X-Trace-ID"

// Gin context keys are namespaced so handler code cannot collide with
// third-party middleware writing to the same context.
const (
	traceIDKey     = "invauth.trace_id"
	requestMetaKey = "invauth.request_meta"
	userIDKey      = "invauth.user_id"
	claimsKey      = "invauth.claims"
)

// RequestContext snapshots the client metadata recorded on freshly opened
// sessions; user agent and IP end up on the auth.sessions row.
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext stamps each request with a trace id, reusing the caller's
// when one is supplied, and captures the client metadata handlers need.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestMetaKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID returns the trace id stamped by EnrichContext, or "" when the
// middleware did not run.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext never returns nil; requests that skipped EnrichContext
// get an empty snapshot.
func GetRequestContext(c *gin.Context) *RequestContext {
	if v, ok := c.Get(requestMetaKey); ok {
		if meta, ok := v.(*RequestContext); ok {
			return meta
		}
	}
	return &RequestContext{}
}
