package chat

import (
	"context"
)

// ListMessages returns the full history of a room, oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID, requesterID int64) ([]MessageView, error) {
	if _, err := s.AuthorizeRoom(ctx, roomID, requesterID); err != nil {
		return nil, err
	}

	var stamp string
	if s.cache != nil {
		var err error
		if stamp, err = messagesStamp(ctx, s.db, roomID); err != nil {
			return nil, Internal("failed to fetch messages", err)
		}
		if views, ok := s.cachedMessages(ctx, roomID, stamp); ok {
			return views, nil
		}
	}

	messages, senders, err := listMessages(ctx, s.db, roomID)
	if err != nil {
		return nil, Internal("failed to fetch messages", err)
	}

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, newMessageView(msg, senders[msg.SenderID]))
	}

	if s.cache != nil {
		s.storeMessages(ctx, roomID, stamp, views)
	}
	return views, nil
}

// ListRooms returns the active rooms of userID, most recently active first.
func (s *Service) ListRooms(ctx context.Context, userID int64) ([]RoomView, error) {
	views, err := listRoomViews(ctx, s.db, userID)
	if err != nil {
		return nil, Internal("failed to fetch rooms", err)
	}
	return views, nil
}

// Partner returns the other participant of a room.
func (s *Service) Partner(ctx context.Context, roomID, userID int64) (*PartnerView, error) {
	room, err := s.AuthorizeRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	partner, err := getUser(ctx, s.db, room.PartnerOf(userID))
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound(msgPartnerNotFound)
		}
		return nil, Internal("failed to fetch partner", err)
	}

	view := newPartnerView(partner)
	return &view, nil
}
