package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/finvora/invoicing-auth/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID makes sure every request carries a correlation id. Ids supplied
// by the gateway are kept so its logs line up with ours; everything else
// gets a fresh uuid. The id rides on the request context so usecase and
// repository logs can pick it up without touching gin.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), logger.RequestIDKey{}, id),
		)

		c.Next()
	}
}
