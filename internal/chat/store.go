package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/4xmen/pairchat/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const roomColumns = `id, user1_id, user2_id, created_at, updated_at, is_active`

func scanRoom(row interface{ Scan(...any) error }) (*models.ChatRoom, error) {
	room := &models.ChatRoom{}
	if err := row.Scan(&room.ID, &room.User1ID, &room.User2ID, &room.CreatedAt, &room.UpdatedAt, &room.IsActive); err != nil {
		return nil, err
	}
	return room, nil
}

func getRoom(ctx context.Context, q querier, roomID int64) (*models.ChatRoom, error) {
	room, err := scanRoom(q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = ?`, roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room %d: %w", roomID, err)
	}
	return room, nil
}

func findRoomByPair(ctx context.Context, q querier, a, b int64) (*models.ChatRoom, error) {
	room, err := scanRoom(q.QueryRowContext(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE MIN(user1_id, user2_id) = MIN(?, ?) AND MAX(user1_id, user2_id) = MAX(?, ?)
	`, a, b, a, b))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room for users %d and %d: %w", a, b, err)
	}
	return room, nil
}

func insertRoom(ctx context.Context, q querier, user1, user2 int64, now time.Time) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO chat_rooms (user1_id, user2_id, created_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, 1)
	`, user1, user2, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return result.LastInsertId()
}

func setRoomActive(ctx context.Context, q querier, roomID int64, active bool, now time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE chat_rooms SET is_active = ?, updated_at = ? WHERE id = ?`, active, now, roomID); err != nil {
		return fmt.Errorf("failed to update room %d: %w", roomID, err)
	}
	return nil
}

// deleteInactiveRoom removes the room only while it is inactive and was last
// updated before cutoff. Messages and file records go with it by cascade.
func deleteInactiveRoom(ctx context.Context, q querier, roomID int64, cutoff time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM chat_rooms WHERE id = ? AND is_active = 0 AND updated_at < ?
	`, roomID, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to delete room %d: %w", roomID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete room %d: %w", roomID, err)
	}
	return n > 0, nil
}

func inactiveRoomsBefore(ctx context.Context, q querier, cutoff time.Time) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM chat_rooms WHERE is_active = 0 AND updated_at < ? ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inactive rooms: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan room id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getUser(ctx context.Context, q querier, userID int64) (*models.User, error) {
	u := &models.User{}
	err := q.QueryRowContext(ctx, `
		SELECT id, username, display_name, created_at FROM users WHERE id = ?
	`, userID).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %d: %w", userID, err)
	}
	return u, nil
}

func insertMessage(ctx context.Context, q querier, msg *models.ChatMessage) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO messages (room_id, sender_id, content, message_type, created_at, updated_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, msg.RoomID, msg.SenderID, msg.Content, string(msg.MessageType), msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	msg.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get message id: %w", err)
	}
	return nil
}

func insertFile(ctx context.Context, q querier, f *models.MessageFile) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO message_files (message_id, file_name, file_path, file_size, file_type, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.MessageID, f.FileName, f.FilePath, f.FileSize, f.FileType, f.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to save file record: %w", err)
	}
	f.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get file id: %w", err)
	}
	return nil
}

// touchRoom records activity in the room; a new message also brings a
// left room back.
func touchRoom(ctx context.Context, q querier, roomID int64, now time.Time) error {
	return setRoomActive(ctx, q, roomID, true, now)
}

// listMessages returns the messages of a room oldest first, with their
// senders and, for file messages, their attachments.
func listMessages(ctx context.Context, q querier, roomID int64) ([]*models.ChatMessage, map[int64]*models.User, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.room_id, m.sender_id, m.content, m.message_type, m.created_at, m.updated_at, m.is_read,
		       u.id, u.username, u.display_name, u.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	byID := make(map[int64]*models.ChatMessage)
	senders := make(map[int64]*models.User)
	for rows.Next() {
		msg := &models.ChatMessage{}
		u := &models.User{}
		var msgType string
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msgType, &msg.CreatedAt, &msg.UpdatedAt, &msg.IsRead,
			&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.MessageType = models.MessageType(msgType)
		messages = append(messages, msg)
		byID[msg.ID] = msg
		senders[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	rows.Close()

	fileRows, err := q.QueryContext(ctx, `
		SELECT f.id, f.message_id, f.file_name, f.file_path, f.file_size, f.file_type, f.uploaded_at
		FROM message_files f
		JOIN messages m ON m.id = f.message_id
		WHERE m.room_id = ? AND m.message_type = 'file'
		ORDER BY f.id ASC
	`, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch files: %w", err)
	}
	defer fileRows.Close()

	for fileRows.Next() {
		f, err := scanFile(fileRows)
		if err != nil {
			return nil, nil, err
		}
		if msg, ok := byID[f.MessageID]; ok {
			msg.Files = append(msg.Files, f)
		}
	}
	if err := fileRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch files: %w", err)
	}

	return messages, senders, nil
}

func scanFile(row interface{ Scan(...any) error }) (*models.MessageFile, error) {
	f := &models.MessageFile{}
	if err := row.Scan(&f.ID, &f.MessageID, &f.FileName, &f.FilePath, &f.FileSize, &f.FileType, &f.UploadedAt); err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return f, nil
}

// getFile returns a file record together with the id of the room it
// belongs to.
func getFile(ctx context.Context, q querier, fileID int64) (*models.MessageFile, int64, error) {
	f := &models.MessageFile{}
	var roomID int64
	err := q.QueryRowContext(ctx, `
		SELECT f.id, f.message_id, f.file_name, f.file_path, f.file_size, f.file_type, f.uploaded_at, m.room_id
		FROM message_files f
		JOIN messages m ON m.id = f.message_id
		WHERE f.id = ?
	`, fileID).Scan(&f.ID, &f.MessageID, &f.FileName, &f.FilePath, &f.FileSize, &f.FileType, &f.UploadedAt, &roomID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch file %d: %w", fileID, err)
	}
	return f, roomID, nil
}

// messagesStamp summarises the state of a room's messages. Messages are only
// ever added or flipped to read, so the stamp changes with every write that
// affects a listing.
func messagesStamp(ctx context.Context, q querier, roomID int64) (string, error) {
	var count, lastID, read int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(id), 0), COALESCE(SUM(is_read), 0)
		FROM messages WHERE room_id = ?
	`, roomID).Scan(&count, &lastID, &read)
	if err != nil {
		return "", fmt.Errorf("failed to stamp messages of room %d: %w", roomID, err)
	}
	return fmt.Sprintf("%d:%d:%d", count, lastID, read), nil
}

func roomFilePaths(ctx context.Context, q querier, roomID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT f.file_path FROM message_files f
		JOIN messages m ON m.id = f.message_id
		WHERE m.room_id = ?
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// markRead flags every unread message in the room not sent by userID.
func markRead(ctx context.Context, q querier, roomID, userID int64, now time.Time) (int64, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, updated_at = ?
		WHERE room_id = ? AND sender_id <> ? AND is_read = 0
	`, now, roomID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to update messages: %w", err)
	}
	return result.RowsAffected()
}

const roomViewQuery = `
	SELECT r.id, r.created_at, r.updated_at, r.is_active,
	       u.id, u.username, u.display_name, u.created_at,
	       m.content, m.message_type, m.created_at,
	       (SELECT COUNT(*) FROM messages x WHERE x.room_id = r.id AND x.sender_id <> ?1 AND x.is_read = 0)
	FROM chat_rooms r
	JOIN users u ON u.id = CASE WHEN r.user1_id = ?1 THEN r.user2_id ELSE r.user1_id END
	LEFT JOIN messages m ON m.id = (
		SELECT id FROM messages WHERE room_id = r.id ORDER BY created_at DESC, id DESC LIMIT 1
	)
	WHERE (r.user1_id = ?1 OR r.user2_id = ?1)`

func scanRoomView(row interface{ Scan(...any) error }) (RoomView, error) {
	var (
		view                  RoomView
		createdAt, updatedAt  time.Time
		partner               models.User
		lastContent, lastType sql.NullString
		lastAt                sql.NullTime
	)
	err := row.Scan(&view.ID, &createdAt, &updatedAt, &view.IsActive,
		&partner.ID, &partner.Username, &partner.DisplayName, &partner.CreatedAt,
		&lastContent, &lastType, &lastAt,
		&view.UnreadCount)
	if err != nil {
		return RoomView{}, err
	}
	view.CreatedAt = formatTime(createdAt)
	view.UpdatedAt = formatTime(updatedAt)
	view.Partner = newPartnerView(&partner)
	if lastType.Valid {
		view.LastMessage = &LastMessageView{
			Content:     lastContent.String,
			Timestamp:   formatTime(lastAt.Time),
			MessageType: models.MessageType(lastType.String),
		}
	}
	return view, nil
}

func listRoomViews(ctx context.Context, q querier, userID int64) ([]RoomView, error) {
	rows, err := q.QueryContext(ctx, roomViewQuery+`
		AND r.is_active = 1
		ORDER BY r.updated_at DESC, r.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}
	defer rows.Close()

	views := []RoomView{}
	for rows.Next() {
		view, err := scanRoomView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func getRoomView(ctx context.Context, q querier, roomID, userID int64) (RoomView, error) {
	view, err := scanRoomView(q.QueryRowContext(ctx, roomViewQuery+` AND r.id = ?2`, userID, roomID))
	if err != nil {
		return RoomView{}, fmt.Errorf("failed to fetch room %d: %w", roomID, err)
	}
	return view, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
