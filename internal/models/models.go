package models

import (
	"path/filepath"
	"strings"
	"time"
)

// MessageType tags a chat message. Only text and file are assigned by the
// send path; image and video are reserved.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeFile  MessageType = "file"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Nickname is the name shown to the other participant.
func (u *User) Nickname() string {
	if u.DisplayName != nil && strings.TrimSpace(*u.DisplayName) != "" {
		return *u.DisplayName
	}
	return u.Username
}

type ChatRoom struct {
	ID        int64     `json:"id"`
	User1ID   int64     `json:"user1_id"`
	User2ID   int64     `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

func (r *ChatRoom) HasParticipant(userID int64) bool {
	return userID == r.User1ID || userID == r.User2ID
}

// PartnerOf returns the participant that is not userID.
func (r *ChatRoom) PartnerOf(userID int64) int64 {
	if userID == r.User1ID {
		return r.User2ID
	}
	return r.User1ID
}

type ChatMessage struct {
	ID          int64          `json:"id"`
	RoomID      int64          `json:"room_id"`
	SenderID    int64          `json:"sender_id"`
	Content     string         `json:"content"`
	MessageType MessageType    `json:"message_type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	IsRead      bool           `json:"is_read"`
	Files       []*MessageFile `json:"files,omitempty"`
}

type MessageFile struct {
	ID         int64     `json:"id"`
	MessageID  int64     `json:"message_id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"-"`
	FileSize   int64     `json:"file_size"`
	FileType   string    `json:"file_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (f *MessageFile) IsImage() bool {
	return strings.HasPrefix(f.FileType, "image/")
}

func (f *MessageFile) IsVideo() bool {
	return strings.HasPrefix(f.FileType, "video/")
}

// Extension returns the lower-cased extension of the original name, dot included.
func (f *MessageFile) Extension() string {
	return strings.ToLower(filepath.Ext(f.FileName))
}
