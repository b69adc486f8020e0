package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageKind tags who authored a message.
type MessageKind string

const (
	// KindUser marks a message written by a chat participant.
	KindUser MessageKind = "user"
	// KindSystem marks a message produced by the service itself.
	KindSystem MessageKind = "system"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	return k == KindUser || k == KindSystem
}

// Message is a chat message as persisted by the message store.
// A stored message is immutable; the relay only ever broadcasts the stored form.
type Message struct {
	// ID is assigned by the store on insert.
	ID uint `gorm:"primaryKey" json:"id"`
	// ChatID is the chat the message belongs to.
	ChatID string `gorm:"type:text;not null;index:idx_chat_msg" json:"chatId"`
	// Kind is either "user" or "system".
	Kind MessageKind `gorm:"type:text;not null" json:"type"`
	// Sender is the identity of the author (not the connection handle).
	Sender string `gorm:"type:text;not null" json:"sender"`
	// Timestamp is the author's send time.
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	// Content is the text payload.
	Content string `gorm:"type:text;not null" json:"content"`
	// CreatedAt is set by GORM when the row is written.
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate is a GORM hook that fills in defaults before the row is written.
// Missing kinds become "user" and a missing timestamp becomes the insert time.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.Kind == "" {
		m.Kind = KindUser
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return
}
