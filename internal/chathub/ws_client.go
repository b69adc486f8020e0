package chathub

import (
	"chatrelay/backend/internal/models"
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// inboundBuffer is how many read frames may wait for the dispatcher.
const inboundBuffer = 16

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	handle   string
	identity string
	session  *Session

	Conn   *websocket.Conn
	Engine *Engine

	send            chan models.Frame
	maxMessageBytes int64
	log             *slog.Logger

	// ctx lives as long as the connection; store calls made for it use ctx.
	ctx        context.Context
	cancel     context.CancelFunc
	inbound    chan []byte
	dispatched chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection with a fresh handle.
// identity, when set, is the authenticated sender for every chat event on this
// connection and overrides whatever the client claims.
func NewWebSocketClient(conn *websocket.Conn, engine *Engine, log *slog.Logger, identity string, sendBuffer int, maxMessageBytes int64) *WebSocketClient {
	handle := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketClient{
		handle:          handle,
		identity:        identity,
		session:         NewSession(),
		Conn:            conn,
		Engine:          engine,
		send:            make(chan models.Frame, sendBuffer),
		maxMessageBytes: maxMessageBytes,
		log:             log.With("handle", handle),
		ctx:             ctx,
		cancel:          cancel,
		inbound:         make(chan []byte, inboundBuffer),
		dispatched:      make(chan struct{}),
	}
}

func (c *WebSocketClient) Handle() string    { return c.handle }
func (c *WebSocketClient) Identity() string  { return c.identity }
func (c *WebSocketClient) Session() *Session { return c.session }

// Send queues a frame for the write pump without blocking.
func (c *WebSocketClient) Send(frame models.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run starts the pumps and the event dispatcher. The read pump owns the
// connection's lifetime and performs the disconnect cleanup when it ends.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.dispatch()
	go c.readPump()
}

// Close stops accepting frames; the write pump drains and closes the socket.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}
