package chathub

import (
	"chatrelay/backend/internal/models"
	"errors"
)

var (
	// ErrClientClosed is returned when sending to a connection that has gone away.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned when a slow connection cannot take another frame.
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client is the interface for one live connection as seen by the relay.
// It abstracts the underlying transport so the registry and engine can treat
// every connection uniformly.
type Client interface {
	// Handle returns the per-connection identifier. It is distinct from the
	// user's identity: one user may hold several connections.
	Handle() string
	// Session returns the connection's room state.
	Session() *Session
	// Send queues a frame for this connection. It must not block; a connection
	// that cannot accept the frame returns an error and the frame is dropped.
	Send(frame models.Frame) error
}
