package chathub_test

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/mock"
)

// MockStore is a testify/mock implementation of storage.MessageStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) AppendMessage(ctx context.Context, chatID string, kind models.MessageKind, sender string, timestamp time.Time, content string) (uint, error) {
	args := m.Called(ctx, chatID, kind, sender, timestamp, content)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockStore) FetchMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// memoryStore is a working in-memory MessageStore for scenario tests.
type memoryStore struct {
	mu       sync.Mutex
	messages []models.Message
}

func (s *memoryStore) AppendMessage(_ context.Context, chatID string, kind models.MessageKind, sender string, timestamp time.Time, content string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{ChatID: chatID, Kind: kind, Sender: sender, Timestamp: timestamp, Content: content}
	_ = msg.BeforeCreate(nil)
	msg.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, msg)
	return msg.ID, nil
}

func (s *memoryStore) FetchMessageByID(_ context.Context, id uint) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || int(id) > len(s.messages) {
		return nil, storage.ErrNotFound
	}
	msg := s.messages[id-1]
	return &msg, nil
}

func (s *memoryStore) ids() map[uint]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]bool, len(s.messages))
	for _, m := range s.messages {
		out[m.ID] = true
	}
	return out
}

// fakeClient is an in-memory chathub.Client with a buffered inbox.
type fakeClient struct {
	handle  string
	session *chathub.Session
	inbox   chan models.Frame
	failing bool
}

func newFakeClient(handle string) *fakeClient {
	return &fakeClient{
		handle:  handle,
		session: chathub.NewSession(),
		inbox:   make(chan models.Frame, 64),
	}
}

func (c *fakeClient) Handle() string             { return c.handle }
func (c *fakeClient) Session() *chathub.Session { return c.session }

func (c *fakeClient) Send(frame models.Frame) error {
	if c.failing {
		return chathub.ErrClientClosed
	}
	select {
	case c.inbox <- frame:
		return nil
	default:
		return chathub.ErrSendBufferFull
	}
}

// DrainMessages returns every chat message received so far.
func (c *fakeClient) DrainMessages() []models.Message {
	var messages []models.Message
	for {
		select {
		case frame := <-c.inbox:
			if frame.Event == models.EventChat {
				messages = append(messages, *frame.Message)
			}
		default:
			return messages
		}
	}
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}
