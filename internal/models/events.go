package models

import "time"

// Event names used on the wire, in both directions.
const (
	EventJoin  = "join"
	EventLeave = "leave"
	EventChat  = "chat"
	EventAck   = "ack"
	EventError = "error"
)

// MaxContentLength bounds the content of a chat event, in characters.
// It must match the max on InboundEvent.Content.
const MaxContentLength = 4096

// Ack statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// InboundEvent is a frame sent by a connected client.
type InboundEvent struct {
	Event string `json:"event" validate:"required,oneof=join leave chat"`
	// Ref is an optional client correlation id echoed in acks and errors.
	Ref    string `json:"ref,omitempty" validate:"max=64"`
	ChatID string `json:"chatId" validate:"required,max=128"`

	Sender    string    `json:"sender,omitempty" validate:"max=128"`
	// Timestamp is optional; a zero value is replaced by the store's insert time.
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty" validate:"required_if=Event chat,max=4096"`
}

// Frame is a frame sent to a connected client.
type Frame struct {
	Event   string   `json:"event"`
	Ref     string   `json:"ref,omitempty"`
	Status  string   `json:"status,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// NewAck builds a successful acknowledgement for the request identified by ref.
func NewAck(ref string) Frame {
	return Frame{Event: EventAck, Ref: ref, Status: StatusOK}
}

// NewError builds a failure notice for the request identified by ref.
func NewError(ref, reason string) Frame {
	return Frame{Event: EventError, Ref: ref, Status: StatusError, Reason: reason}
}

// NewChat wraps a stored message for delivery.
func NewChat(msg *Message) Frame {
	return Frame{Event: EventChat, Message: msg}
}
