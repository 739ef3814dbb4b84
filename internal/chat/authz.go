package chat

import "github.com/4xmen/pairchat/internal/models"

// Authorize allows userID to act on room only when it is one of the two
// participants.
func Authorize(room *models.ChatRoom, userID int64) error {
	if room == nil || !room.HasParticipant(userID) {
		return Forbidden(msgPermissionDenied)
	}
	return nil
}
