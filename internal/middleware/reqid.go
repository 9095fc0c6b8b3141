package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReqIDKey is the context key holding the request correlation id.
const ReqIDKey = "req_id"

// RequestID tags every request with a correlation id, echoed in error
// bodies and the X-Request-ID header so support can match client reports
// to server logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ReqIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
