package chathub

import (
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/models"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

var validate = validator.New()

// readPump reads frames from the socket and queues them for dispatch. It notices
// a dropped peer even while the dispatcher waits on the store, and cancels the
// connection's context so that store call is abandoned.
func (c *WebSocketClient) readPump() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic while reading client frames", "panic", r)
		}
		c.cancel()
		close(c.inbound)
		<-c.dispatched
		// Runs on every exit path: a handle left in a room would receive
		// broadcasts forever.
		c.Engine.OnDisconnecting(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageBytes)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Error reading message", "error", err)
			}
			return
		}
		select {
		case c.inbound <- data:
		case <-c.ctx.Done():
			return
		}
	}
}

// dispatch hands queued frames to the engine one at a time, so a connection's
// sends are stored and broadcast in arrival order.
func (c *WebSocketClient) dispatch() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic while handling client event", "panic", r)
			// Unblock the read pump; it performs the cleanup.
			c.cancel()
			c.Conn.Close()
		}
		close(c.dispatched)
	}()

	for data := range c.inbound {
		if c.ctx.Err() != nil {
			// The connection is gone; drain without handling.
			continue
		}
		c.handleMessage(data)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var ev models.InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Debug("Malformed event", "error", err)
		c.reply(models.NewError("", "malformed event"))
		return
	}
	if err := validate.Struct(ev); err != nil {
		c.log.Debug("Invalid event", "event", ev.Event, "error", err)
		c.reply(models.NewError(ev.Ref, "invalid event"))
		return
	}

	switch ev.Event {
	case models.EventJoin:
		c.reply(c.Engine.OnJoin(ev.ChatID, c, ev.Ref))
	case models.EventLeave:
		c.reply(c.Engine.OnLeave(ev.ChatID, c, ev.Ref))
	case models.EventChat:
		c.handleChat(ev)
	}
}

func (c *WebSocketClient) handleChat(ev models.InboundEvent) {
	sender := ev.Sender
	if c.identity != "" {
		sender = c.identity
	}
	if sender == "" {
		c.reply(models.NewError(ev.Ref, "sender required"))
		return
	}

	_, err := c.Engine.OnSend(c.ctx, SendRequest{
		ChatID:    ev.ChatID,
		Sender:    sender,
		Timestamp: ev.Timestamp,
		Content:   ev.Content,
	})
	if err != nil {
		c.reply(models.NewError(ev.Ref, "message not stored"))
	}
}

func (c *WebSocketClient) reply(frame models.Frame) {
	if err := c.Send(frame); err != nil {
		c.log.Warn("Reply dropped", "event", frame.Event, "error", err)
	}
}

// writePump writes queued frames to the socket, one frame per message, and keeps
// the connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		// A failed write means the peer is gone.
		c.cancel()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// Closed by Close(); say goodbye to the peer.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				c.log.Error("Error encoding frame", "event", frame.Event, "error", err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
