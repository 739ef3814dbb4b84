package chat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/4xmen/pairchat/internal/logging"
	"github.com/4xmen/pairchat/internal/metrics"
	"github.com/4xmen/pairchat/internal/models"
)

// Attachment is one uploaded file. Size is the declared byte size; the
// bytes actually read from Content must match it.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

type SendRequest struct {
	RoomID   int64
	SenderID int64
	Content  string
	Files    []Attachment
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// SendMessage validates req and stores the message with its attachments.
// Either the message and all of its files are stored, or nothing is.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*MessageView, error) {
	room, err := s.AuthorizeRoom(ctx, req.RoomID, req.SenderID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Files) == 0 {
		return nil, Invalid(msgEmptyMessage)
	}

	for _, f := range req.Files {
		if f.Size > s.maxFileSize {
			return nil, Invalid(msgFileTooLarge, f.Name, humanSize(s.maxFileSize))
		}
		if strings.TrimSpace(f.ContentType) == "" {
			return nil, Invalid(msgMissingType, f.Name)
		}
		if !IsAllowedType(f.ContentType) {
			return nil, Invalid(msgUnsupportedType, f.Name, f.ContentType)
		}
	}

	sender, err := getUser(ctx, s.db, req.SenderID)
	if err != nil {
		return nil, Internal("failed to fetch sender", err)
	}

	now := s.clock()
	msg := &models.ChatMessage{
		RoomID:      room.ID,
		SenderID:    req.SenderID,
		Content:     content,
		MessageType: models.MessageTypeText,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(req.Files) > 0 {
		msg.MessageType = models.MessageTypeFile
	}

	var written []string
	committed := false
	defer func() {
		if !committed {
			s.removeBlobs(ctx, written)
		}
	}()

	for _, f := range req.Files {
		file, err := s.writeBlob(ctx, f, now)
		if file != nil {
			written = append(written, file.FilePath)
		}
		if err != nil {
			return nil, err
		}
		msg.Files = append(msg.Files, file)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Internal("failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, msg); err != nil {
		return nil, Internal("failed to create message", err)
	}
	for _, f := range msg.Files {
		f.MessageID = msg.ID
		if err := insertFile(ctx, tx, f); err != nil {
			return nil, Internal("failed to save file record", err)
		}
	}
	if err := touchRoom(ctx, tx, room.ID, now); err != nil {
		return nil, Internal("failed to update room", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, Internal("failed to commit message", err)
	}
	committed = true

	s.invalidateMessages(ctx, room.ID)

	metrics.MessagesSent.WithLabelValues(string(msg.MessageType)).Inc()
	for _, f := range msg.Files {
		metrics.AttachmentsStored.Inc()
		metrics.AttachmentBytes.Add(float64(f.FileSize))
	}

	view := newMessageView(msg, sender)
	return &view, nil
}

// writeBlob stores one attachment under a fresh key. The returned record is
// non-nil whenever a blob may have been written, so the caller can clean up.
func (s *Service) writeBlob(ctx context.Context, f Attachment, now time.Time) (*models.MessageFile, error) {
	if f.Content == nil {
		return nil, Invalid(msgSizeMismatch, f.Name)
	}
	record := &models.MessageFile{
		FileName:   f.Name,
		FilePath:   storageKey(f.Name),
		FileType:   NormalizeContentType(f.ContentType),
		UploadedAt: now,
	}

	// Seekable content is measured up front and handed to storage as is,
	// so backends that rewind the body can do so.
	if rs, ok := f.Content.(io.ReadSeeker); ok {
		n, err := remaining(rs)
		if err != nil {
			return nil, Internal("failed to read file", err)
		}
		if n > s.maxFileSize {
			return nil, Invalid(msgFileTooLarge, f.Name, humanSize(s.maxFileSize))
		}
		if f.Size >= 0 && n != f.Size {
			return nil, Invalid(msgSizeMismatch, f.Name)
		}
		record.FileSize = n
		if err := s.blobs.Write(ctx, record.FilePath, rs, n, record.FileType); err != nil {
			return record, Internal("failed to save file", err)
		}
		return record, nil
	}

	counter := &countingReader{r: io.LimitReader(f.Content, s.maxFileSize+1)}
	if err := s.blobs.Write(ctx, record.FilePath, counter, f.Size, record.FileType); err != nil {
		return record, Internal("failed to save file", err)
	}
	record.FileSize = counter.n

	if record.FileSize > s.maxFileSize {
		return record, Invalid(msgFileTooLarge, f.Name, humanSize(s.maxFileSize))
	}
	if f.Size >= 0 && record.FileSize != f.Size {
		return record, Invalid(msgSizeMismatch, f.Name)
	}
	return record, nil
}

// remaining returns the number of unread bytes in rs and leaves it where it
// was.
func remaining(rs io.ReadSeeker) (int64, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

func (s *Service) removeBlobs(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	cleanupCtx := context.WithoutCancel(ctx)
	l := logging.Ctx(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(cleanupCtx, key); err != nil {
			l.Error().Err(err).Str("key", key).Msg("failed to remove orphaned attachment")
		}
	}
}
