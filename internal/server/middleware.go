package server

import (
	"bytes"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"

	"github.com/4xmen/pairchat/internal/handlers"
	"github.com/4xmen/pairchat/internal/logging"
)

func rateLimitMiddleware(limiterInstance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiterContext, err := limiterInstance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			handlers.AbortWithError(c, http.StatusInternalServerError, "rate limiter error")
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiterContext.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limiterContext.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", limiterContext.Reset))

		if limiterContext.Reached {
			handlers.AbortWithError(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w responseBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// serverErrorLogger logs the body of every 5xx response. Bodies of other
// responses are not kept.
func serverErrorLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		blw := &responseBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error().
				Int(logging.FieldStatus, c.Writer.Status()).
				Str(logging.FieldMethod, c.Request.Method).
				Str(logging.FieldPath, c.Request.URL.Path).
				Str(logging.FieldClientIP, c.ClientIP()).
				Dur("duration", time.Since(start).Truncate(time.Millisecond)).
				Str("errors", c.Errors.ByType(gin.ErrorTypeAny).String()).
				Str("response", strings.TrimSpace(blw.body.String())).
				Msg("server error response")
		}
	}
}

func panicRecovery(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str(logging.FieldMethod, c.Request.Method).
			Str(logging.FieldPath, c.Request.URL.Path).
			Str(logging.FieldClientIP, c.ClientIP()).
			Interface("panic", recovered).
			Bytes("stack", debug.Stack()).
			Msg("panic recovered")
		handlers.AbortWithError(c, http.StatusInternalServerError, "internal server error")
	})
}

func corsMiddleware(origins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origins)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
