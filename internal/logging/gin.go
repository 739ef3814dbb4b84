package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// GinMiddleware tags each request with an id, stores a child logger in the
// request context and logs one line when the request completes. Handlers
// may set FieldUserID and FieldRoomID on the gin context to have them logged.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		evt := child.Info().
			Int(FieldStatus, c.Writer.Status()).
			Float64(FieldLatency, float64(time.Since(start).Microseconds())/1000)

		if userID, ok := c.Get(FieldUserID); ok {
			if id, ok := userID.(int64); ok {
				evt = evt.Int64(FieldUserID, id)
			}
		}
		if roomID, ok := c.Get(FieldRoomID); ok {
			if id, ok := roomID.(int64); ok {
				evt = evt.Int64(FieldRoomID, id)
			}
		}

		evt.Msg("request completed")
	}
}
