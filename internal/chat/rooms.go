package chat

import (
	"context"
	"time"

	"github.com/4xmen/pairchat/internal/logging"
)

// OpenRoom returns the room shared by userID and partnerID, creating it on
// first contact. A room one side has left becomes active again.
func (s *Service) OpenRoom(ctx context.Context, userID, partnerID int64) (*RoomView, bool, error) {
	if userID == partnerID {
		return nil, false, Invalid(msgSelfRoom)
	}
	if _, err := getUser(ctx, s.db, partnerID); err != nil {
		if isNoRows(err) {
			return nil, false, NotFound(msgPartnerNotFound)
		}
		return nil, false, Internal("failed to fetch partner", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, Internal("failed to start transaction", err)
	}
	defer tx.Rollback()

	now := s.clock()
	created := false

	var roomID int64
	room, err := findRoomByPair(ctx, tx, userID, partnerID)
	switch {
	case err == nil:
		roomID = room.ID
		if !room.IsActive {
			if err := setRoomActive(ctx, tx, room.ID, true, now); err != nil {
				return nil, false, Internal("failed to reactivate room", err)
			}
		}
	case isNoRows(err):
		roomID, err = insertRoom(ctx, tx, userID, partnerID, now)
		if err != nil {
			return nil, false, Internal("failed to create room", err)
		}
		created = true
	default:
		return nil, false, Internal("failed to fetch room", err)
	}

	view, err := getRoomView(ctx, tx, roomID, userID)
	if err != nil {
		return nil, false, Internal("failed to fetch room", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, Internal("failed to commit room", err)
	}
	return &view, created, nil
}

// LeaveRoom hides the room from both participants until the next message or
// OpenRoom. Nothing is deleted.
func (s *Service) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	if _, err := s.AuthorizeRoom(ctx, roomID, userID); err != nil {
		return err
	}
	if err := setRoomActive(ctx, s.db, roomID, false, s.clock()); err != nil {
		return Internal("failed to leave room", err)
	}
	return nil
}

// MarkRead marks every unread message the partner sent in the room as read
// and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, roomID, userID int64) (int64, error) {
	if _, err := s.AuthorizeRoom(ctx, roomID, userID); err != nil {
		return 0, err
	}
	n, err := markRead(ctx, s.db, roomID, userID, s.clock())
	if err != nil {
		return 0, Internal("failed to mark messages as read", err)
	}
	if n > 0 {
		s.invalidateMessages(ctx, roomID)
	}
	return n, nil
}

// InactiveRoomsBefore lists rooms that were left before cutoff.
func (s *Service) InactiveRoomsBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	ids, err := inactiveRoomsBefore(ctx, s.db, cutoff.UTC())
	if err != nil {
		return nil, Internal("failed to fetch inactive rooms", err)
	}
	return ids, nil
}

// PurgeRoom deletes a room with its messages, file records and blobs. It is
// an operator action and performs no participant check. The room is only
// deleted while it is still inactive and was last updated before cutoff; a
// room reactivated since it was listed is left intact and purged is false.
func (s *Service) PurgeRoom(ctx context.Context, roomID int64, cutoff time.Time) (removed int, purged bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, Internal("failed to start transaction", err)
	}
	defer tx.Rollback()

	if _, err := getRoom(ctx, tx, roomID); err != nil {
		if isNoRows(err) {
			return 0, false, NotFound(msgRoomNotFound)
		}
		return 0, false, Internal("failed to fetch room", err)
	}

	// The transaction holds the write lock, so the paths match the rows the
	// conditional delete cascades over.
	paths, err := roomFilePaths(ctx, tx, roomID)
	if err != nil {
		return 0, false, Internal("failed to fetch files", err)
	}
	deleted, err := deleteInactiveRoom(ctx, tx, roomID, cutoff.UTC())
	if err != nil {
		return 0, false, Internal("failed to delete room", err)
	}
	if !deleted {
		return 0, false, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, false, Internal("failed to commit delete", err)
	}

	s.invalidateMessages(ctx, roomID)

	l := logging.Ctx(ctx)
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			l.Warn().Err(err).Int64(logging.FieldRoomID, roomID).Str("key", p).Msg("failed to delete attachment blob")
			continue
		}
		removed++
	}
	return removed, true, nil
}
