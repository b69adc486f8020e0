package storage

import (
	"chatrelay/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a message id matches no stored record.
var ErrNotFound = errors.New("message not found")

// ErrInvalidKind is returned when asked to append a message of an unknown kind.
var ErrInvalidKind = errors.New("invalid message kind")

// MessageStore is the persistence contract the relay depends on:
// append a message and get its id back, then fetch it by that id.
type MessageStore interface {
	AppendMessage(ctx context.Context, chatID string, kind models.MessageKind, sender string, timestamp time.Time, content string) (uint, error)
	FetchMessageByID(ctx context.Context, id uint) (*models.Message, error)
}

// Storage is the full store used by the server and the admin CLI.
type Storage interface {
	MessageStore

	ListMessages(ctx context.Context, chatID string, page, limit int) ([]models.Message, error)
	RecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Service is the GORM-backed Storage. Redis is optional and only used as a
// recent-history cache; the database is always the source of truth.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	log        *slog.Logger
	recentSize int
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, log *slog.Logger, recentSize int) *Service {
	return &Service{
		DB:         db,
		Redis:      rdb,
		log:        log,
		recentSize: recentSize,
	}
}

// Migrate creates or updates the messages table.
func (s *Service) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(&models.Message{})
}

// Close releases the database pool and the Redis client.
func (s *Service) Close() error {
	var errs []error
	if sqlDB, err := s.DB.DB(); err != nil {
		errs = append(errs, err)
	} else if err := sqlDB.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AppendMessage persists a new message and returns its store-assigned id.
func (s *Service) AppendMessage(ctx context.Context, chatID string, kind models.MessageKind, sender string, timestamp time.Time, content string) (uint, error) {
	if kind != "" && !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	msg := models.Message{
		ChatID:    chatID,
		Kind:      kind,
		Sender:    sender,
		Timestamp: timestamp,
		Content:   content,
	}
	// msg.ID is filled by GORM.
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return 0, fmt.Errorf("append message to chat %s: %w", chatID, err)
	}

	s.cacheRecent(ctx, msg)

	return msg.ID, nil
}

// FetchMessageByID returns the stored message with the given id.
func (s *Service) FetchMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch message %d: %w", id, err)
	}
	return &msg, nil
}

// ListMessages returns one page of a chat's history, newest first by store
// order. Sender clocks are not trusted for ordering, and the recent cache keeps
// the same order.
func (s *Service) ListMessages(ctx context.Context, chatID string, page, limit int) ([]models.Message, error) {
	if page < 0 {
		page = 0
	}
	messages := make([]models.Message, 0, limit)
	err := s.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id desc").
		Offset(page * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of chat %s: %w", chatID, err)
	}
	return messages, nil
}
