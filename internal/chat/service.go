package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/4xmen/pairchat/internal/cache"
	"github.com/4xmen/pairchat/internal/logging"
	"github.com/4xmen/pairchat/internal/metrics"
	"github.com/4xmen/pairchat/internal/models"
	"github.com/4xmen/pairchat/internal/storage"
)

// DefaultMaxFileSize is the largest accepted attachment, inclusive.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

type Service struct {
	db          *sql.DB
	blobs       storage.Storage
	cache       cache.Cache
	cacheTTL    time.Duration
	maxFileSize int64
	now         func() time.Time
}

type Option func(*Service)

// WithCache serves message lists from c for up to ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(db *sql.DB, blobs storage.Storage, opts ...Option) *Service {
	s := &Service{
		db:          db,
		blobs:       blobs,
		maxFileSize: DefaultMaxFileSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// AuthorizeRoom loads the room and checks that userID takes part in it.
func (s *Service) AuthorizeRoom(ctx context.Context, roomID, userID int64) (*models.ChatRoom, error) {
	room, err := getRoom(ctx, s.db, roomID)
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound(msgRoomNotFound)
		}
		return nil, Internal("failed to fetch room", err)
	}
	if err := Authorize(room, userID); err != nil {
		return nil, err
	}
	return room, nil
}

func messagesCacheKey(roomID int64) string {
	return fmt.Sprintf("room:%d:messages", roomID)
}

// cachedList is a message listing tagged with the stamp of the room state it
// was read from.
type cachedList struct {
	Stamp    string        `json:"stamp"`
	Messages []MessageView `json:"messages"`
}

// cachedMessages returns the cached listing only if it was read from the
// state identified by stamp.
func (s *Service) cachedMessages(ctx context.Context, roomID int64, stamp string) ([]MessageView, bool) {
	data, err := s.cache.Get(ctx, messagesCacheKey(roomID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := logging.Ctx(ctx)
			l.Warn().Err(err).Int64(logging.FieldRoomID, roomID).Msg("message cache read failed")
		}
		metrics.MessageCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	var entry cachedList
	if err := json.Unmarshal(data, &entry); err != nil {
		metrics.MessageCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if entry.Stamp != stamp {
		metrics.MessageCacheLookups.WithLabelValues("stale").Inc()
		return nil, false
	}
	metrics.MessageCacheLookups.WithLabelValues("hit").Inc()
	return entry.Messages, true
}

// storeMessages caches views under the stamp taken before they were read. A
// write that lands in between changes the stamp, so the entry is never served.
func (s *Service) storeMessages(ctx context.Context, roomID int64, stamp string, views []MessageView) {
	data, err := json.Marshal(cachedList{Stamp: stamp, Messages: views})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, messagesCacheKey(roomID), data, s.cacheTTL); err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Int64(logging.FieldRoomID, roomID).Msg("message cache write failed")
	}
}

func (s *Service) invalidateMessages(ctx context.Context, roomID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), messagesCacheKey(roomID)); err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Int64(logging.FieldRoomID, roomID).Msg("message cache invalidation failed")
	}
}
