package storage

import (
	"chatrelay/backend/internal/models"
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

func recentKey(chatID string) string {
	return "recent:" + chatID
}

// cacheRecent pushes a freshly stored message onto the chat's capped recent list.
// Cache failures never fail the append.
func (s *Service) cacheRecent(ctx context.Context, msg models.Message) {
	if s.Redis == nil || s.recentSize <= 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("Encode message for cache", "id", msg.ID, "error", err)
		return
	}

	key := recentKey(msg.ChatID)
	_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.recentSize-1))
		return nil
	})
	if err != nil {
		s.log.Warn("Cache recent message", "chat", msg.ChatID, "id", msg.ID, "error", err)
	}
}

// RecentMessages returns the newest messages of a chat, newest first. It is served
// from Redis when the cache holds enough entries and from the database otherwise.
func (s *Service) RecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	if cached, ok := s.cachedRecent(ctx, chatID, limit); ok {
		return cached, nil
	}
	return s.ListMessages(ctx, chatID, 0, limit)
}

func (s *Service) cachedRecent(ctx context.Context, chatID string, limit int) ([]models.Message, bool) {
	if s.Redis == nil || limit <= 0 || limit > s.recentSize {
		return nil, false
	}

	raw, err := s.Redis.LRange(ctx, recentKey(chatID), 0, int64(limit-1)).Result()
	if err != nil {
		s.log.Warn("Read recent cache", "chat", chatID, "error", err)
		return nil, false
	}
	// A short list may just mean the cache was started after older messages were written.
	if len(raw) < limit {
		return nil, false
	}

	messages := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.log.Warn("Decode cached message", "chat", chatID, "error", err)
			return nil, false
		}
		messages = append(messages, msg)
	}
	return messages, true
}
