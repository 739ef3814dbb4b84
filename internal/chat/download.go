package chat

import (
	"context"
	"errors"
	"io"

	"github.com/4xmen/pairchat/internal/metrics"
	"github.com/4xmen/pairchat/internal/models"
	"github.com/4xmen/pairchat/internal/storage"
)

// Download is an open attachment. The caller must close Body.
type Download struct {
	File *models.MessageFile
	Body io.ReadCloser
}

// OpenFile authorizes requesterID against the room the file was sent in and
// opens the stored blob.
func (s *Service) OpenFile(ctx context.Context, fileID, requesterID int64) (*Download, error) {
	file, roomID, err := getFile(ctx, s.db, fileID)
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound(msgFileNotFound)
		}
		return nil, Internal("failed to fetch file", err)
	}

	room, err := getRoom(ctx, s.db, roomID)
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound(msgFileNotFound)
		}
		return nil, Internal("failed to fetch room", err)
	}
	if err := Authorize(room, requesterID); err != nil {
		return nil, err
	}

	body, err := s.blobs.Read(ctx, file.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NotFound(msgFileMissing)
		}
		return nil, Internal("failed to open file", err)
	}

	metrics.FileDownloads.Inc()
	return &Download{File: file, Body: body}, nil
}
