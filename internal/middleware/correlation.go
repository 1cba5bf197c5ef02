package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"liana-gateway/internal/utils"
)

// CorrelationIDKey is the gin and request context key of the correlation id
const CorrelationIDKey = "correlation_id"

const correlationHeader = "X-Correlation-ID"

type correlationKey struct{}

// CorrelationID propagates the X-Correlation-ID header, generating a UUID
// when the client sent none or a malformed one
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationHeader)
		if !utils.IsValidUUID(correlationID) {
			correlationID = utils.GenerateUUID()
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Header(correlationHeader, correlationID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), correlationKey{}, correlationID))

		c.Next()
	}
}

// CorrelationIDFromContext returns the correlation id stored by CorrelationID
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
