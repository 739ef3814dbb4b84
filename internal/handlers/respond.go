package handlers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/logging"
	"github.com/4xmen/pairchat/pkg/i18n"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = logging.FieldUserID

func requestLang(c *gin.Context) language.Tag {
	return i18n.FromAcceptLanguage(c.GetHeader("Accept-Language"))
}

// RespondError writes {"error": msg} with msg translated for the caller.
func RespondError(c *gin.Context, status int, msg string, args ...any) {
	c.JSON(status, gin.H{"error": i18n.Format(requestLang(c), msg, args...)})
}

// AbortWithError is RespondError followed by c.Abort, for middleware.
func AbortWithError(c *gin.Context, status int, msg string, args ...any) {
	RespondError(c, status, msg, args...)
	c.Abort()
}

func currentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func statusFor(kind chat.Kind) int {
	switch kind {
	case chat.KindNotFound:
		return http.StatusNotFound
	case chat.KindForbidden:
		return http.StatusForbidden
	case chat.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// redactPaths strips absolute storage roots from a fault description.
func redactPaths(desc string, roots []string) string {
	for _, root := range roots {
		if root == "" {
			continue
		}
		desc = strings.ReplaceAll(desc, root+string(os.PathSeparator), "")
		desc = strings.ReplaceAll(desc, root, "")
	}
	return desc
}

func writeError(c *gin.Context, err error, redact []string) {
	var chatErr *chat.Error
	if errors.As(err, &chatErr) && chatErr.Kind != chat.KindInternal {
		RespondError(c, statusFor(chatErr.Kind), chatErr.Message, chatErr.Args...)
		return
	}

	_ = c.Error(err)
	l := logging.Ctx(c.Request.Context())
	l.Error().Err(err).Msg("chat request failed")

	RespondError(c, http.StatusInternalServerError, "server error: %s", redactPaths(err.Error(), redact))
}
