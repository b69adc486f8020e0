package chathub

import (
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SystemSender is the sender identity of messages authored by the relay.
const SystemSender = "system"

// ErrPersistence marks a send that was not durably stored and therefore not broadcast.
var ErrPersistence = errors.New("message not persisted")

// SendRequest is one inbound chat message.
type SendRequest struct {
	ChatID    string
	Sender    string
	Timestamp time.Time
	Content   string
}

// Engine handles join, leave, disconnect and send events from connections.
// It owns the RoomRegistry and is the only component that writes to it.
type Engine struct {
	registry     *RoomRegistry
	store        storage.MessageStore
	log          *slog.Logger
	storeTimeout time.Duration
}

// NewEngine wires an engine to its registry and message store.
// A zero storeTimeout leaves store calls bounded only by the caller's context.
func NewEngine(registry *RoomRegistry, store storage.MessageStore, log *slog.Logger, storeTimeout time.Duration) *Engine {
	return &Engine{
		registry:     registry,
		store:        store,
		log:          log,
		storeTimeout: storeTimeout,
	}
}

// Registry exposes the room registry for read-only inspection.
func (e *Engine) Registry() *RoomRegistry {
	return e.registry
}

// OnJoin puts the client in room. The acknowledgement goes to the requester only.
func (e *Engine) OnJoin(room string, c Client, ref string) models.Frame {
	size := e.registry.Join(room, c)
	e.log.Info("Joined chat room", "room", room, "handle", c.Handle(), "members", size)
	return models.NewAck(ref)
}

// OnLeave takes the client out of room. Leaving a room never joined still acknowledges.
func (e *Engine) OnLeave(room string, c Client, ref string) models.Frame {
	if e.registry.Leave(room, c) {
		e.log.Info("Left chat room", "room", room, "handle", c.Handle(), "members", e.registry.Size(room))
	} else {
		e.log.Debug("Leave for room not joined", "room", room, "handle", c.Handle())
	}
	return models.NewAck(ref)
}

// OnDisconnecting removes a departing connection from the room it occupied.
// Nothing is sent back: the connection is gone.
func (e *Engine) OnDisconnecting(c Client) {
	room, held := e.registry.Disconnect(c)
	if !held {
		e.log.Debug("Disconnected without a room", "handle", c.Handle())
		return
	}
	e.log.Info("Disconnected from chat room", "room", room, "handle", c.Handle(), "members", e.registry.Size(room))
}

// OnSend stores a user message and delivers the stored record to every member
// of the chat, the sender included. Nothing is delivered unless the message was
// stored and read back; such failures wrap ErrPersistence.
func (e *Engine) OnSend(ctx context.Context, req SendRequest) (*models.Message, error) {
	return e.publish(ctx, req.ChatID, models.KindUser, req.Sender, req.Timestamp, req.Content)
}

// PostSystem stores and delivers a message authored by the relay itself.
func (e *Engine) PostSystem(ctx context.Context, chatID, content string) (*models.Message, error) {
	return e.publish(ctx, chatID, models.KindSystem, SystemSender, time.Now().UTC(), content)
}

func (e *Engine) publish(ctx context.Context, chatID string, kind models.MessageKind, sender string, ts time.Time, content string) (*models.Message, error) {
	msg, err := e.persist(ctx, chatID, kind, sender, ts, content)
	if err != nil {
		e.log.Error("Failed to store message, not broadcasting", "room", chatID, "sender", sender, "error", err)
		return nil, err
	}

	delivered := e.fanOut(msg)
	e.log.Debug("Message broadcast", "room", chatID, "id", msg.ID, "delivered", delivered)
	return msg, nil
}

// persist appends the message and reads it back so that what gets broadcast is
// exactly the stored form, including any defaults applied by the store.
func (e *Engine) persist(ctx context.Context, chatID string, kind models.MessageKind, sender string, ts time.Time, content string) (*models.Message, error) {
	if e.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.storeTimeout)
		defer cancel()
	}

	id, err := e.store.AppendMessage(ctx, chatID, kind, sender, ts, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	msg, err := e.store.FetchMessageByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: read back %d: %w", ErrPersistence, id, err)
	}
	return msg, nil
}

// fanOut delivers msg to a snapshot of the room's members. A failing recipient
// is skipped; the others still receive the message.
func (e *Engine) fanOut(msg *models.Message) int {
	frame := models.NewChat(msg)
	delivered := 0
	for _, c := range e.registry.MembersOf(msg.ChatID) {
		if err := c.Send(frame); err != nil {
			e.log.Warn("Delivery failed", "room", msg.ChatID, "id", msg.ID, "handle", c.Handle(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
