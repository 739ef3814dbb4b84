package chat

import (
	"fmt"
	"time"

	"github.com/4xmen/pairchat/internal/models"
)

// DownloadPath is the path of the authorized download endpoint for a file.
func DownloadPath(fileID int64) string {
	return fmt.Sprintf("/api/chat/files/%d/download/", fileID)
}

type FileView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type MessageView struct {
	ID          int64              `json:"id"`
	Content     string             `json:"content"`
	Sender      int64              `json:"sender"`
	SenderName  string             `json:"sender_name"`
	Timestamp   string             `json:"timestamp"`
	MessageType models.MessageType `json:"message_type"`
	IsRead      bool               `json:"is_read"`
	Files       []FileView         `json:"files"`
}

type PartnerView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type LastMessageView struct {
	Content     string             `json:"content"`
	Timestamp   string             `json:"timestamp"`
	MessageType models.MessageType `json:"message_type"`
}

type RoomView struct {
	ID          int64            `json:"id"`
	Partner     PartnerView      `json:"partner"`
	LastMessage *LastMessageView `json:"last_message"`
	UnreadCount int              `json:"unread_count"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
	IsActive    bool             `json:"is_active"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func newFileView(f *models.MessageFile) FileView {
	return FileView{
		ID:   f.ID,
		Name: f.FileName,
		Type: f.FileType,
		Size: f.FileSize,
		URL:  DownloadPath(f.ID),
	}
}

// newMessageView renders msg. Files are only listed for file messages.
func newMessageView(msg *models.ChatMessage, sender *models.User) MessageView {
	view := MessageView{
		ID:          msg.ID,
		Content:     msg.Content,
		Sender:      msg.SenderID,
		Timestamp:   formatTime(msg.CreatedAt),
		MessageType: msg.MessageType,
		IsRead:      msg.IsRead,
		Files:       []FileView{},
	}
	if sender != nil {
		view.SenderName = sender.Nickname()
	}
	if msg.MessageType == models.MessageTypeFile {
		for _, f := range msg.Files {
			view.Files = append(view.Files, newFileView(f))
		}
	}
	return view
}

func newPartnerView(u *models.User) PartnerView {
	return PartnerView{ID: u.ID, Username: u.Username, Nickname: u.Nickname()}
}
