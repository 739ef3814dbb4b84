package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/logging"
)

const defaultMaxRequestSize int64 = 64 << 20

type ChatHandler struct {
	svc            *chat.Service
	publicBaseURL  string
	maxRequestSize int64
	redact         []string
}

type ChatOption func(*ChatHandler)

// WithPublicBaseURL fixes the scheme and host used in file URLs. Without it
// they are derived from the request.
func WithPublicBaseURL(base string) ChatOption {
	return func(h *ChatHandler) {
		h.publicBaseURL = strings.TrimSuffix(base, "/")
	}
}

func WithMaxRequestSize(n int64) ChatOption {
	return func(h *ChatHandler) {
		if n > 0 {
			h.maxRequestSize = n
		}
	}
}

// WithRedactedPaths removes the given absolute paths from 500 responses.
func WithRedactedPaths(paths ...string) ChatOption {
	return func(h *ChatHandler) {
		h.redact = append(h.redact, paths...)
	}
}

func NewChatHandler(svc *chat.Service, opts ...ChatOption) *ChatHandler {
	h := &ChatHandler{svc: svc, maxRequestSize: defaultMaxRequestSize}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ChatHandler) baseURL(c *gin.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *ChatHandler) absolutize(c *gin.Context, views []chat.MessageView) {
	base := h.baseURL(c)
	for i := range views {
		for j := range views[i].Files {
			views[i].Files[j].URL = base + views[i].Files[j].URL
		}
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// roomRequest resolves the caller and the :room_id parameter, writing the
// error response itself when either is missing.
func roomRequest(c *gin.Context) (userID, roomID int64, ok bool) {
	userID, ok = currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized")
		return 0, 0, false
	}
	roomID, ok = pathID(c, "room_id")
	if !ok {
		RespondError(c, http.StatusBadRequest, "invalid room id")
		return 0, 0, false
	}
	c.Set(logging.FieldRoomID, roomID)
	return userID, roomID, true
}

// ListRooms returns the caller's active rooms.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms, err := h.svc.ListRooms(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, h.redact)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "rooms": rooms})
}

// OpenRoom gets or creates the room between the caller and partner_id.
func (h *ChatHandler) OpenRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		PartnerID int64 `json:"partner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if req.PartnerID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid partner id")
		return
	}

	room, created, err := h.svc.OpenRoom(c.Request.Context(), userID, req.PartnerID)
	if err != nil {
		writeError(c, err, h.redact)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "room": room, "created": created})
}

// GetPartner returns the other participant of a room.
func (h *ChatHandler) GetPartner(c *gin.Context) {
	userID, roomID, ok := roomRequest(c)
	if !ok {
		return
	}

	partner, err := h.svc.Partner(c.Request.Context(), roomID, userID)
	if err != nil {
		writeError(c, err, h.redact)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "partner": partner})
}

// ListMessages returns the whole history of a room, oldest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, roomID, ok := roomRequest(c)
	if !ok {
		return
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), roomID, userID)
	if err != nil {
		writeError(c, err, h.redact)
		return
	}
	h.absolutize(c, messages)

	c.JSON(http.StatusOK, gin.H{"messages": messages, "room_id": roomID})
}

// SendMessage accepts a multipart form with a "content" field and any
// number of "files" parts.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, roomID, ok := roomRequest(c)
	if !ok {
		return
	}

	// Room and membership are checked before the body is read.
	if _, err := h.svc.AuthorizeRoom(c.Request.Context(), roomID, userID); err != nil {
		writeError(c, err, h.redact)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestSize)

	var (
		content string
		headers []*multipart.FileHeader
	)
	form, err := c.MultipartForm()
	switch {
	case err == nil:
		if values := form.Value["content"]; len(values) > 0 {
			content = values[0]
		}
		headers = form.File["files"]
	case errors.Is(err, http.ErrNotMultipart):
		content = c.PostForm("content")
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RespondError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		RespondError(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	attachments := make([]chat.Attachment, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			writeError(c, chat.Internal("failed to read upload", err), h.redact)
			return
		}
		defer file.Close()

		attachments = append(attachments, chat.Attachment{
			Name:        fh.Filename,
			ContentType: strings.TrimSpace(fh.Header.Get("Content-Type")),
			Size:        fh.Size,
			Content:     file,
		})
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), chat.SendRequest{
		RoomID:   roomID,
		SenderID: userID,
		Content:  content,
		Files:    attachments,
	})
	if err != nil {
		writeError(c, err, h.redact)
		return
	}

	views := []chat.MessageView{*msg}
	h.absolutize(c, views)
	c.JSON(http.StatusCreated, gin.H{"message": views[0]})
}

// MarkRead marks every message the partner sent in the room as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, roomID, ok := roomRequest(c)
	if !ok {
		return
	}

	marked, err := h.svc.MarkRead(c.Request.Context(), roomID, userID)
	if err != nil {
		writeError(c, err, h.redact)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "room_id": roomID, "marked": marked})
}

// LeaveRoom deactivates the room.
func (h *ChatHandler) LeaveRoom(c *gin.Context) {
	userID, roomID, ok := roomRequest(c)
	if !ok {
		return
	}

	if err := h.svc.LeaveRoom(c.Request.Context(), roomID, userID); err != nil {
		writeError(c, err, h.redact)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "room_id": roomID})
}

// DownloadFile streams an attachment under its original name.
func (h *ChatHandler) DownloadFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	fileID, ok := pathID(c, "file_id")
	if !ok {
		RespondError(c, http.StatusBadRequest, "invalid file id")
		return
	}

	download, err := h.svc.OpenFile(c.Request.Context(), fileID, userID)
	if err != nil {
		writeError(c, err, h.redact)
		return
	}
	defer download.Body.Close()

	c.DataFromReader(http.StatusOK, download.File.FileSize, download.File.FileType, download.Body, map[string]string{
		"Content-Disposition":    ContentDisposition(download.File.FileName),
		"X-Content-Type-Options": "nosniff",
	})
}

// ContentDisposition builds an attachment header carrying name. Names that
// are not plain ASCII also get an RFC 5987 filename* parameter.
func ContentDisposition(name string) string {
	var b strings.Builder
	plain := true
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case r > 0x7e:
			b.WriteByte('_')
			plain = false
		default:
			b.WriteRune(r)
		}
	}

	header := fmt.Sprintf(`attachment; filename="%s"`, b.String())
	if !plain {
		header += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return header
}
