package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	applog "github.com/finvora/invoicing-auth/internal/infra/logger"
)

// Logger writes one access-log line per request. Client IPs are masked
// before they reach the log stream; emails never appear at this layer.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		// Capture before c.Next(): handlers may rewrite the request.
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", applog.MaskIP(c.ClientIP())),
			zap.String("trace_id", GetTraceID(c)),
		}

		if id := requestIDFrom(c.Request.Context()); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		if len(c.Errors) > 0 {
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}

		log.Info("request completed", fields...)
	}
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(applog.RequestIDKey{}).(string)
	return id
}
